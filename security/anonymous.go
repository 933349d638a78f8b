// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package security

// AnonymousPrincipal is the client_principal() of the Anonymous context.
const AnonymousPrincipal = "ANONYMOUS"

// Anonymous is a no-op Context: Wrap and Unwrap pass bytes through
// unchanged. It is installed for connections that negotiate no auth.
type Anonymous struct{}

var _ Context = Anonymous{}

func (Anonymous) Wrap(plaintext []byte) ([]byte, error) { return plaintext, nil }
func (Anonymous) Unwrap(sealed []byte) ([]byte, error)  { return sealed, nil }
func (Anonymous) ClientPrincipal() string               { return AnonymousPrincipal }
