package model

import "time"

// Step is the single directive returned by each evaluation. The variant
// set is closed; rendering is the caller's concern.
type Step interface {
	// StepName is a stable identifier used in logs, metrics and traces.
	StepName() string
	step()
}

// PhoneNumberMode tells the caller why a number is requested.
type PhoneNumberMode string

const (
	PhoneNumberInitial        PhoneNumberMode = "initialRegistration"
	PhoneNumberReRegistration PhoneNumberMode = "reRegistration"
	PhoneNumberChange         PhoneNumberMode = "changingNumber"
)

// PhoneNumberError is an inline validation error on phone entry.
type PhoneNumberError string

const (
	PhoneNumberErrorNone    PhoneNumberError = ""
	PhoneNumberErrorInvalid PhoneNumberError = "invalidNumber"
)

// CodeEntryError is an inline error on verification code entry.
type CodeEntryError string

const (
	CodeEntryErrorNone            CodeEntryError = ""
	CodeEntryErrorWrongCode       CodeEntryError = "wrongCode"
	CodeEntryErrorTooManyAttempts CodeEntryError = "tooManyAttempts"
	CodeEntryErrorTransport       CodeEntryError = "transportFailed"
	CodeEntryErrorProvider        CodeEntryError = "providerFailure"
	CodeEntryErrorRequestFailed   CodeEntryError = "failedToRequest"
	CodeEntryErrorRateLimited     CodeEntryError = "rateLimited"
)

// PinEntryMode tells the caller which PIN flow is active.
type PinEntryMode string

const (
	PinModeRegistrationRecoveryPassword PinEntryMode = "restoringRegistrationRecoveryPassword"
	PinModeRestoringBackup              PinEntryMode = "restoringBackup"
	PinModeReglock                      PinEntryMode = "reglock"
	PinModePostRegistrationRestore      PinEntryMode = "postRegistrationRestore"
	PinModeCreate                       PinEntryMode = "creatingNewPin"
)

// PinError is an inline error on PIN entry.
type PinError string

const (
	PinErrorNone     PinError = ""
	PinErrorWrongPin PinError = "wrongPin"
)

type (
	// StepSplash shows the welcome screen.
	StepSplash struct{}

	// StepPermissions asks for outstanding system permissions.
	StepPermissions struct{}

	// StepPhoneNumberEntry asks for the number to register.
	StepPhoneNumberEntry struct {
		Mode             PhoneNumberMode
		E164             string
		OldE164          string
		ValidationError  PhoneNumberError
		RateLimitedUntil *time.Time
		CanExit          bool
	}

	// StepVerificationCodeEntry asks for the code sent to the number.
	StepVerificationCodeEntry struct {
		E164                    string
		NextSMS                 *time.Time
		NextCall                *time.Time
		NextVerificationAttempt *time.Time
		Error                   CodeEntryError
		CanExit                 bool
	}

	// StepCaptcha asks the caller to solve a captcha.
	StepCaptcha struct{}

	// StepPinEntry asks for the PIN.
	StepPinEntry struct {
		Mode              PinEntryMode
		RemainingAttempts *int
		Error             PinError
		CanSkip           bool
		CanExit           bool
	}

	// StepPinAttemptsExhaustedWithoutReglock explains that PIN recovery is
	// closed and registration continues with SMS verification.
	StepPinAttemptsExhaustedWithoutReglock struct{}

	// StepReglockTimeout shows when the reglock expires.
	StepReglockTimeout struct {
		Expiry  time.Time
		CanExit bool
	}

	// StepQuickRestore waits for the old device.
	StepQuickRestore struct{}

	// StepChooseRestoreMethod offers the restore choices.
	StepChooseRestoreMethod struct{}

	// StepEnterBackupKey asks for the backup root key.
	StepEnterBackupKey struct {
		Method RestoreMethod
	}

	// StepDeviceTransfer hands over to the external transfer flow.
	StepDeviceTransfer struct{}

	// StepProfileSetup asks for name and avatar.
	StepProfileSetup struct{}

	// StepPhoneNumberDiscoverability asks whether the number is discoverable.
	StepPhoneNumberDiscoverability struct {
		E164 string
	}

	// StepAppUpdateRequired is returned when the server asks for a
	// challenge this build does not understand.
	StepAppUpdateRequired struct{}

	// StepShowErrorSheet layers an error over the step that would
	// otherwise be shown.
	StepShowErrorSheet struct {
		Kind   ErrorSheetKind
		Until  *time.Time
		Behind Step
	}

	// StepDone means registration completed and state was exported.
	StepDone struct{}

	// StepExited means the user abandoned the flow.
	StepExited struct{}
)

func (StepSplash) StepName() string                { return "splash" }
func (StepPermissions) StepName() string           { return "permissions" }
func (StepPhoneNumberEntry) StepName() string      { return "phoneNumberEntry" }
func (StepVerificationCodeEntry) StepName() string { return "verificationCodeEntry" }
func (StepCaptcha) StepName() string               { return "captcha" }
func (StepPinEntry) StepName() string              { return "pinEntry" }
func (StepPinAttemptsExhaustedWithoutReglock) StepName() string {
	return "pinAttemptsExhaustedWithoutReglock"
}
func (StepReglockTimeout) StepName() string             { return "reglockTimeout" }
func (StepQuickRestore) StepName() string               { return "quickRestore" }
func (StepChooseRestoreMethod) StepName() string        { return "chooseRestoreMethod" }
func (StepEnterBackupKey) StepName() string             { return "enterBackupKey" }
func (StepDeviceTransfer) StepName() string             { return "deviceTransfer" }
func (StepProfileSetup) StepName() string               { return "profileSetup" }
func (StepPhoneNumberDiscoverability) StepName() string { return "phoneNumberDiscoverability" }
func (StepAppUpdateRequired) StepName() string          { return "appUpdateRequired" }
func (StepShowErrorSheet) StepName() string             { return "showErrorSheet" }
func (StepDone) StepName() string                       { return "done" }
func (StepExited) StepName() string                     { return "exited" }

func (StepSplash) step()                             {}
func (StepPermissions) step()                        {}
func (StepPhoneNumberEntry) step()                   {}
func (StepVerificationCodeEntry) step()              {}
func (StepCaptcha) step()                            {}
func (StepPinEntry) step()                           {}
func (StepPinAttemptsExhaustedWithoutReglock) step() {}
func (StepReglockTimeout) step()                     {}
func (StepQuickRestore) step()                       {}
func (StepChooseRestoreMethod) step()                {}
func (StepEnterBackupKey) step()                     {}
func (StepDeviceTransfer) step()                     {}
func (StepProfileSetup) step()                       {}
func (StepPhoneNumberDiscoverability) step()         {}
func (StepAppUpdateRequired) step()                  {}
func (StepShowErrorSheet) step()                     {}
func (StepDone) step()                               {}
func (StepExited) step()                             {}

// Describe renders a step as a short deterministic string for traces,
// e.g. "pinEntry(mode=reglock,remaining=2,error=wrongPin)".
func Describe(s Step) string {
	switch v := s.(type) {
	case nil:
		return "<nil>"
	case StepPhoneNumberEntry:
		return describe(v.StepName(), "mode", string(v.Mode), "e164", v.E164, "error", string(v.ValidationError), "until", formatTime(v.RateLimitedUntil))
	case StepVerificationCodeEntry:
		return describe(v.StepName(), "e164", v.E164, "error", string(v.Error))
	case StepPinEntry:
		remaining := ""
		if v.RemainingAttempts != nil {
			remaining = itoa(*v.RemainingAttempts)
		}
		return describe(v.StepName(), "mode", string(v.Mode), "remaining", remaining, "error", string(v.Error))
	case StepReglockTimeout:
		return describe(v.StepName(), "expiry", formatTime(&v.Expiry))
	case StepEnterBackupKey:
		return describe(v.StepName(), "method", string(v.Method))
	case StepPhoneNumberDiscoverability:
		return describe(v.StepName(), "e164", v.E164)
	case StepShowErrorSheet:
		return describe(v.StepName(), "kind", string(v.Kind), "until", formatTime(v.Until), "behind", Describe(v.Behind))
	default:
		return s.StepName()
	}
}
