package harness

import (
	"fmt"
	"sort"

	"github.com/roach88/registrar/internal/engine"
	"github.com/roach88/registrar/internal/model"
)

// inputBuilders maps input names to constructors reading the step args.
var inputBuilders = map[string]func(a args) (engine.Input, error){
	"nextStep":           func(args) (engine.Input, error) { return engine.NextStep{}, nil },
	"completeSplash":     func(args) (engine.Input, error) { return engine.CompleteSplash{}, nil },
	"requestPermissions": func(args) (engine.Input, error) { return engine.RequestPermissions{}, nil },
	"skipPin":            func(args) (engine.Input, error) { return engine.SkipPin{}, nil },
	"dismissErrorSheet":  func(args) (engine.Input, error) { return engine.DismissErrorSheet{}, nil },
	"exitFlow":           func(args) (engine.Input, error) { return engine.ExitFlow{}, nil },
	"submitPhoneNumber": func(a args) (engine.Input, error) {
		e164, err := a.str("e164")
		return engine.SubmitPhoneNumber{E164: e164}, err
	},
	"requestCode": func(a args) (engine.Input, error) {
		t, err := a.str("transport")
		if err != nil {
			return nil, err
		}
		switch transport := model.Transport(t); transport {
		case model.TransportSMS, model.TransportVoice:
			return engine.RequestCode{Transport: transport}, nil
		default:
			return nil, fmt.Errorf("unknown transport %q", t)
		}
	},
	"submitVerificationCode": func(a args) (engine.Input, error) {
		code, err := a.str("code")
		return engine.SubmitVerificationCode{Code: code}, err
	},
	"submitCaptcha": func(a args) (engine.Input, error) {
		token, err := a.str("token")
		return engine.SubmitCaptcha{Token: token}, err
	},
	"submitPushChallengeToken": func(a args) (engine.Input, error) {
		token, err := a.str("token")
		return engine.SubmitPushChallengeToken{Token: token}, err
	},
	"submitPin": func(a args) (engine.Input, error) {
		pin, err := a.str("pin")
		return engine.SubmitPin{Pin: pin}, err
	},
	"beginRestore": func(a args) (engine.Input, error) {
		m, err := a.str("mode")
		if err != nil {
			return nil, err
		}
		switch mode := model.RestoreMode(m); mode {
		case model.RestoreModeQuick, model.RestoreModeManual:
			return engine.BeginRestore{Mode: mode}, nil
		default:
			return nil, fmt.Errorf("unknown restore mode %q", m)
		}
	},
	"chooseRestoreMethod": func(a args) (engine.Input, error) {
		m, err := a.str("method")
		if err != nil {
			return nil, err
		}
		switch method := model.RestoreMethod(m); method {
		case model.RestoreMethodDeviceTransfer, model.RestoreMethodLocalBackup,
			model.RestoreMethodRemoteBackup, model.RestoreMethodDeclined:
			return engine.ChooseRestoreMethod{Method: method}, nil
		default:
			return nil, fmt.Errorf("unknown restore method %q", m)
		}
	},
	"provideRootKey": func(a args) (engine.Input, error) {
		key, err := a.str("key")
		return engine.ProvideRootKey{Key: key}, err
	},
	"setProfileInfo": func(a args) (engine.Input, error) {
		given, err := a.str("given_name")
		if err != nil {
			return nil, err
		}
		family, _ := a.optionalStr("family_name")
		return engine.SetProfileInfo{GivenName: given, FamilyName: family}, nil
	},
	"setPhoneNumberDiscoverability": func(a args) (engine.Input, error) {
		d, err := a.boolean("discoverable")
		return engine.SetPhoneNumberDiscoverability{Discoverable: d}, err
	},
}

// InputNames returns every input a flow step may use, sorted.
func InputNames() []string {
	names := make([]string, 0, len(inputBuilders))
	for name := range inputBuilders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// buildInput converts a flow step to an engine input.
func buildInput(step FlowStep) (engine.Input, error) {
	build, ok := inputBuilders[step.Input]
	if !ok {
		return nil, fmt.Errorf("unknown input %q", step.Input)
	}
	in, err := build(args(step.Args))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", step.Input, err)
	}
	return in, nil
}

// args are YAML-decoded input arguments.
type args map[string]interface{}

func (a args) str(key string) (string, error) {
	s, ok := a.optionalStr(key)
	if !ok {
		return "", fmt.Errorf("string arg %q is required", key)
	}
	return s, nil
}

func (a args) optionalStr(key string) (string, bool) {
	s, ok := a[key].(string)
	return s, ok
}

func (a args) boolean(key string) (bool, error) {
	b, ok := a[key].(bool)
	if !ok {
		return false, fmt.Errorf("bool arg %q is required", key)
	}
	return b, nil
}
