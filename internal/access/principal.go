package access

import "github.com/placementhub/apiserver/types"

// Principal is the verified caller identity derived from a bearer
// token: subject id plus role claim. It is the only identity handlers
// and services ever see; there is no server-side session.
type Principal struct {
	UserID string
	Role   types.Role
}
