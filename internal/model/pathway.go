package model

// Pathway is one mutually exclusive mode of progress. Exactly one is
// active per evaluation. The variant set is closed.
type Pathway interface {
	// Name is a stable identifier used in logs, metrics and traces.
	Name() string
	pathway()
}

// PathOpening covers splash, permissions, phone entry and starting a session.
type PathOpening struct{}

// PathQuickRestore waits on a quick-restore selection.
type PathQuickRestore struct{}

// PathManualRestore waits on a manual restore method or root key.
type PathManualRestore struct{}

// PathRegistrationRecoveryPassword registers with a locally derived password.
type PathRegistrationRecoveryPassword struct {
	Password string
}

// PathSVRAuthCredential restores the master key with a validated credential.
type PathSVRAuthCredential struct {
	Credential SVRAuthCredential
}

// PathSVRAuthCredentialCandidates validates stored credentials with the server.
type PathSVRAuthCredentialCandidates struct {
	Candidates []SVRAuthCredential
}

// PathSession drives an active verification session.
type PathSession struct {
	Session *Session
}

// PathProfileSetup finalizes an obtained identity.
type PathProfileSetup struct {
	Identity AccountIdentity
}

func (PathOpening) Name() string                      { return "opening" }
func (PathQuickRestore) Name() string                 { return "quickRestore" }
func (PathManualRestore) Name() string                { return "manualRestore" }
func (PathRegistrationRecoveryPassword) Name() string { return "registrationRecoveryPassword" }
func (PathSVRAuthCredential) Name() string            { return "svrAuthCredential" }
func (PathSVRAuthCredentialCandidates) Name() string  { return "svrAuthCredentialCandidates" }
func (PathSession) Name() string                      { return "session" }
func (PathProfileSetup) Name() string                 { return "profileSetup" }

func (PathOpening) pathway()                      {}
func (PathQuickRestore) pathway()                 {}
func (PathManualRestore) pathway()                {}
func (PathRegistrationRecoveryPassword) pathway() {}
func (PathSVRAuthCredential) pathway()            {}
func (PathSVRAuthCredentialCandidates) pathway()  {}
func (PathSession) pathway()                      {}
func (PathProfileSetup) pathway()                 {}
