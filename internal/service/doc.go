// Package service declares the collaborators the registration engine
// drives: the session, secret-recovery and account services, plus the
// local facilities (push tokens, permissions, prekeys, storage service,
// profile, username, PNI, local secrets, account export).
//
// Remote outcomes are closed result values, not errors. A remote call
// never fails the engine; every Kind is matched by the caller.
package service
