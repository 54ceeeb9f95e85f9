// Package identity defines the credential-verification boundary of the
// library backend.
//
// The session core consumes verification through the CredentialVerifier
// interface and treats it as opaque. MemoryVerifier is the reference
// implementation used by tests and development setups; production deployments
// plug in their own implementation over the member database.
package identity
