package rpc

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// Vault error kinds.
	CodeUnauthorized        = -32001
	CodeInsufficientPayment = -32002
	CodeTokenInvalid        = -32003
	CodeCountOutOfBounds    = -32004
	CodeTokenCollision      = -32005
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      interface{} `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ── Param types ─────────────────────────────────────────────────────────

// TokenParam is used by vault_isActive.
type TokenParam struct {
	Token string `json:"token"`
}

// RedeemParam is used by vault_redeem. Caller is an optional hex
// address recorded in the access log.
type RedeemParam struct {
	Token   string `json:"token"`
	Payment uint64 `json:"payment"`
	Caller  string `json:"caller,omitempty"`
}

// AdminAuth carries the signature material of an admin-gated call.
// Sig is a Schnorr signature by the administrator key over the
// method-specific digest; Ts bounds the signature's validity window.
type AdminAuth struct {
	Pubkey string `json:"pubkey"` // compressed secp256k1, hex
	Sig    string `json:"sig"`    // Schnorr signature, hex
	Ts     int64  `json:"ts"`     // unix seconds
}

// MintParam is used by vault_mint.
type MintParam struct {
	Secret string `json:"secret"` // encrypted secret bytes, hex
	Count  int    `json:"count"`
	AdminAuth
}

// SetFeeParam is used by vault_setFee.
type SetFeeParam struct {
	Amount uint64 `json:"amount"`
	AdminAuth
}

// WithdrawParam is used by vault_withdraw.
type WithdrawParam struct {
	AdminAuth
}

// ── Result types ────────────────────────────────────────────────────────

// InfoResult is returned by vault_getInfo.
type InfoResult struct {
	Admin        string `json:"admin"`
	Fee          uint64 `json:"fee"`
	Derivation   string `json:"derivation"`
	ActiveTokens int    `json:"active_tokens"`
	Balance      uint64 `json:"balance"`
}

// FeeResult is returned by vault_currentFee.
type FeeResult struct {
	Fee uint64 `json:"fee"`
}

// ActiveResult is returned by vault_isActive.
type ActiveResult struct {
	Active bool `json:"active"`
}

// MintResult is returned by vault_mint.
type MintResult struct {
	Tokens []string `json:"tokens"`
}

// RedeemResult is returned by vault_redeem.
type RedeemResult struct {
	Secret string `json:"secret"` // encrypted secret bytes, hex
}

// WithdrawResult is returned by vault_withdraw.
type WithdrawResult struct {
	Amount uint64 `json:"amount"`
}
