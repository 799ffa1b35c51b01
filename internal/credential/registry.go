// Package credential verifies login material and resolves it to an
// identity.
//
// Each credential variant owns one method id. The Registry is a fixed table
// built once at startup; login requests name a method id and the Registry
// dispatches to the variant that owns it. Bit n of an identity's method
// mask is set while that identity holds a credential of method id n.
package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	apperrors "github.com/guiqiqi/itmo-moodle-agent/errors"
	"github.com/guiqiqi/itmo-moodle-agent/internal/identity"
)

// Method is a credential method id.
type Method uint8

const (
	MethodPassword  Method = 0
	MethodFederated Method = 1
)

// String returns the method name.
func (m Method) String() string {
	switch m {
	case MethodPassword:
		return "password"
	case MethodFederated:
		return "federated"
	}
	return fmt.Sprintf("method(%d)", uint8(m))
}

// ErrUnsupportedCredentials is returned by a variant handed login material
// of the wrong type. The Registry reports it to callers as INVALID_LOGIN.
var ErrUnsupportedCredentials = errors.New("credential: unsupported credentials type")

// Credential is one login method.
type Credential interface {
	Method() Method
	// Authenticate verifies creds and returns the active identity they
	// belong to. Every rejection is INVALID_LOGIN.
	Authenticate(ctx context.Context, creds any) (*identity.Identity, error)
	// Delete removes the identity's credential of this method, if any, and
	// clears the method bit.
	Delete(ctx context.Context, identityID uuid.UUID) error
}

// Registry maps method ids to variants.
type Registry struct {
	table [identity.MaxMethods]Credential
}

// NewRegistry builds a registry from a fixed set of variants. It panics
// when two variants share a method id or an id does not fit the method
// mask.
func NewRegistry(variants ...Credential) *Registry {
	r := &Registry{}
	for _, v := range variants {
		m := v.Method()
		if int(m) >= identity.MaxMethods {
			panic(fmt.Sprintf("credential: method id %d out of range", m))
		}
		if r.table[m] != nil {
			panic(fmt.Sprintf("credential: method id %d registered twice", m))
		}
		r.table[m] = v
	}
	return r
}

// Get returns the variant for method.
func (r *Registry) Get(method Method) (Credential, error) {
	if int(method) >= identity.MaxMethods || r.table[method] == nil {
		return nil, apperrors.InvalidAuthenticationMethod(int(method))
	}
	return r.table[method], nil
}

// Methods lists the registered method ids in ascending order.
func (r *Registry) Methods() []Method {
	var out []Method
	for i, v := range r.table {
		if v != nil {
			out = append(out, Method(i))
		}
	}
	return out
}

// Authenticate dispatches creds to the variant registered for method.
func (r *Registry) Authenticate(ctx context.Context, method Method, creds any) (*identity.Identity, error) {
	v, err := r.Get(method)
	if err != nil {
		return nil, err
	}
	ident, err := v.Authenticate(ctx, creds)
	if errors.Is(err, ErrUnsupportedCredentials) {
		return nil, apperrors.InvalidLogin()
	}
	if err != nil {
		return nil, err
	}
	return ident, nil
}

// DeleteAll removes every credential the identity holds.
func (r *Registry) DeleteAll(ctx context.Context, identityID uuid.UUID) error {
	for _, v := range r.table {
		if v == nil {
			continue
		}
		if err := v.Delete(ctx, identityID); err != nil {
			return fmt.Errorf("delete %s credential: %w", v.Method(), err)
		}
	}
	return nil
}

// Models lists the tables owned by this package for auto-migration.
func Models() []interface{} {
	return []interface{}{&PasswordRecord{}, &FederatedRecord{}}
}
