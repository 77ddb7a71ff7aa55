package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cinderlabs/cindervault/internal/vault"
	"github.com/cinderlabs/cindervault/pkg/types"
)

// parseParams re-marshals the request params into a typed struct.
func parseParams(req *Request, dst interface{}) *Error {
	if req.Params == nil {
		return nil
	}
	data, err := json.Marshal(req.Params)
	if err != nil {
		return &Error{Code: CodeInvalidParams, Message: "invalid params"}
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}

// mapVaultError converts a vault error into a JSON-RPC error.
func mapVaultError(err error) *Error {
	switch {
	case errors.Is(err, vault.ErrUnauthorized):
		return &Error{Code: CodeUnauthorized, Message: err.Error()}
	case errors.Is(err, vault.ErrInsufficientPayment):
		return &Error{Code: CodeInsufficientPayment, Message: err.Error()}
	case errors.Is(err, vault.ErrTokenInvalid):
		return &Error{Code: CodeTokenInvalid, Message: err.Error()}
	case errors.Is(err, vault.ErrCountOutOfBounds):
		return &Error{Code: CodeCountOutOfBounds, Message: err.Error()}
	case errors.Is(err, vault.ErrTokenCollision):
		return &Error{Code: CodeTokenCollision, Message: err.Error()}
	default:
		return &Error{Code: CodeInternalError, Message: err.Error()}
	}
}

func (s *Server) handleGetInfo(_ *Request) (interface{}, *Error) {
	active, err := s.vault.ActiveCount()
	if err != nil {
		return nil, mapVaultError(err)
	}
	balance, err := s.vault.Balance()
	if err != nil {
		return nil, mapVaultError(err)
	}
	return &InfoResult{
		Admin:        s.vault.Admin().String(),
		Fee:          uint64(s.vault.CurrentFee()),
		Derivation:   string(s.derivation),
		ActiveTokens: active,
		Balance:      uint64(balance),
	}, nil
}

func (s *Server) handleCurrentFee(_ *Request) (interface{}, *Error) {
	return &FeeResult{Fee: uint64(s.vault.CurrentFee())}, nil
}

func (s *Server) handleIsActive(req *Request) (interface{}, *Error) {
	var params TokenParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	token, err := types.ParseToken(params.Token)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
	}
	return &ActiveResult{Active: s.vault.IsActive(token)}, nil
}

func (s *Server) handleRedeem(req *Request) (interface{}, *Error) {
	var params RedeemParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	token, err := types.ParseToken(params.Token)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
	}

	var caller types.Address
	if params.Caller != "" {
		caller, err = types.HexToAddress(params.Caller)
		if err != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
		}
	}

	secret, err := s.vault.Redeem(token, types.Amount(params.Payment), caller)
	if err != nil {
		return nil, mapVaultError(err)
	}
	return &RedeemResult{Secret: hex.EncodeToString(secret)}, nil
}

func (s *Server) handleMint(req *Request) (interface{}, *Error) {
	var params MintParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	secret, err := hex.DecodeString(params.Secret)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: "secret must be hex"}
	}
	if len(secret) == 0 {
		return nil, &Error{Code: CodeInvalidParams, Message: "secret is required"}
	}

	caller, rpcErr := verifyAuth(params.AdminAuth, MintDigest(secret, params.Count, params.Ts))
	if rpcErr != nil {
		return nil, rpcErr
	}

	tokens, err := s.vault.Mint(secret, params.Count, caller)
	if err != nil {
		return nil, mapVaultError(err)
	}

	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.String()
	}
	return &MintResult{Tokens: out}, nil
}

func (s *Server) handleSetFee(req *Request) (interface{}, *Error) {
	var params SetFeeParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}

	caller, rpcErr := verifyAuth(params.AdminAuth, SetFeeDigest(types.Amount(params.Amount), params.Ts))
	if rpcErr != nil {
		return nil, rpcErr
	}

	if err := s.vault.SetFee(types.Amount(params.Amount), caller); err != nil {
		return nil, mapVaultError(err)
	}
	return &FeeResult{Fee: params.Amount}, nil
}

func (s *Server) handleWithdraw(req *Request) (interface{}, *Error) {
	var params WithdrawParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}

	caller, rpcErr := verifyAuth(params.AdminAuth, WithdrawDigest(params.Ts))
	if rpcErr != nil {
		return nil, rpcErr
	}

	amount, err := s.vault.Withdraw(caller)
	if err != nil {
		return nil, mapVaultError(err)
	}
	return &WithdrawResult{Amount: uint64(amount)}, nil
}
