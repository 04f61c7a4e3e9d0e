package model

// AccountIdentity is the account the server confirmed. The auth token is
// generated locally for the attempt and carried through, never issued by
// the server.
type AccountIdentity struct {
	ACI                  string `json:"aci"`
	PNI                  string `json:"pni"`
	E164                 string `json:"e164"`
	DeviceID             uint32 `json:"device_id"`
	AuthToken            string `json:"auth_token"`
	HasPreviouslyUsedSVR bool   `json:"has_previously_used_svr"`
	ReglockEnabled       bool   `json:"reglock_enabled,omitempty"`
}

// SVRAuthCredential authenticates against the secret recovery service
// without an account session.
type SVRAuthCredential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RestoreMode is the restore flavour chosen on a fresh device.
type RestoreMode string

const (
	RestoreModeNone   RestoreMode = ""
	RestoreModeQuick  RestoreMode = "quickRestore"
	RestoreModeManual RestoreMode = "manualRestore"
)

// RestoreMethod is how the user wants to bring over previous data.
type RestoreMethod string

const (
	RestoreMethodNone           RestoreMethod = ""
	RestoreMethodDeviceTransfer RestoreMethod = "deviceTransfer"
	RestoreMethodLocalBackup    RestoreMethod = "localBackup"
	RestoreMethodRemoteBackup   RestoreMethod = "remoteBackup"
	RestoreMethodDeclined       RestoreMethod = "declined"
)

// RequiresRootKey reports whether the method needs the backup root key
// before registration can proceed.
func (m RestoreMethod) RequiresRootKey() bool {
	return m == RestoreMethodLocalBackup || m == RestoreMethodRemoteBackup
}

// ProfileInfo is the profile collected during finalization.
type ProfileInfo struct {
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name,omitempty"`
}
