package rpc

import (
	"encoding/json"
	"math/big"
	"net/http"
	"strings"

	"vaultcore/crypto"
	"vaultcore/native/vault"
	"vaultcore/observability/metrics"
)

type vaultInitializePoolParams struct {
	Asset       string `json:"asset"`
	RewardAsset string `json:"rewardAsset"`
}

type vaultDepositParams struct {
	Owner  string `json:"owner"`
	PoolID string `json:"poolId"`
	Amount string `json:"amount"`
}

type vaultWithdrawParams struct {
	Owner  string `json:"owner"`
	PoolID string `json:"poolId"`
	Shares string `json:"shares"`
}

type vaultClaimParams struct {
	Owner  string `json:"owner"`
	PoolID string `json:"poolId"`
}

type vaultFundParams struct {
	Funder        string `json:"funder"`
	PoolID        string `json:"poolId"`
	Amount        string `json:"amount"`
	RatePerSecond string `json:"ratePerSecond"`
}

type vaultPoolQueryParams struct {
	PoolID string `json:"poolId"`
}

type vaultPositionQueryParams struct {
	PoolID string `json:"poolId"`
	Owner  string `json:"owner"`
}

type vaultBalanceParams struct {
	Asset   string `json:"asset"`
	Account string `json:"account"`
}

type vaultPoolResult struct {
	PoolID              string `json:"poolId"`
	Asset               string `json:"asset"`
	RewardAsset         string `json:"rewardAsset"`
	TotalShares         string `json:"totalShares"`
	RewardRatePerSecond string `json:"rewardRatePerSecond"`
	AccRewardPerShare   string `json:"accRewardPerShare"`
	LastUpdateTs        int64  `json:"lastUpdateTs"`
	DepositVault        string `json:"depositVault"`
	RewardVault         string `json:"rewardVault"`
}

type vaultPositionResult struct {
	Owner         string `json:"owner"`
	PoolID        string `json:"poolId"`
	Shares        string `json:"shares"`
	PendingReward string `json:"pendingReward"`
	ClaimableNow  string `json:"claimableNow"`
}

type vaultDepositResult struct {
	Shares string `json:"shares"`
}

type vaultWithdrawResult struct {
	Amount string `json:"amount"`
}

type vaultClaimResult struct {
	Amount string `json:"amount"`
}

type vaultFundResult struct {
	PoolID        string `json:"poolId"`
	RatePerSecond string `json:"ratePerSecond"`
}

type vaultBalanceResult struct {
	Asset   string `json:"asset"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

func decodeParams(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "expected a single params object"}
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid parameter", Data: err.Error()}
	}
	return nil
}

func parseAmount(raw string) (*big.Int, *RPCError) {
	value, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || value.Sign() < 0 {
		return nil, &RPCError{Code: codeInvalidParams, Message: "invalid amount", Data: raw}
	}
	return value, nil
}

func parseOwner(raw string) (crypto.Address, *RPCError) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil {
		return crypto.Address{}, &RPCError{Code: codeInvalidParams, Message: "invalid address", Data: err.Error()}
	}
	return addr, nil
}

func poolResult(pool *vault.Pool) vaultPoolResult {
	return vaultPoolResult{
		PoolID:              pool.ID,
		Asset:               pool.Asset,
		RewardAsset:         pool.RewardAsset,
		TotalShares:         pool.TotalShares.String(),
		RewardRatePerSecond: pool.RewardRatePerSecond.String(),
		AccRewardPerShare:   pool.AccRewardPerShare.String(),
		LastUpdateTs:        pool.LastUpdateTs,
		DepositVault:        pool.DepositVault.String(),
		RewardVault:         pool.RewardVault.String(),
	}
}

func (s *Server) handleInitializePool(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params vaultInitializePoolParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	poolID := vault.PoolID(strings.TrimSpace(params.Asset), strings.TrimSpace(params.RewardAsset))
	var created *vault.Pool
	err := s.withPool(poolID, "initializePool", func(eng *vault.Engine) error {
		pool, err := eng.InitializePool(params.Asset, params.RewardAsset)
		if err != nil {
			return err
		}
		created = pool
		return nil
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, poolResult(created))
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params vaultDepositParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	owner, rpcErr := parseOwner(params.Owner)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	amount, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	var shares, totalShares *big.Int
	err := s.withPool(params.PoolID, "deposit", func(eng *vault.Engine) error {
		minted, err := eng.Deposit(owner, params.PoolID, amount)
		if err != nil {
			return err
		}
		shares = minted
		pool, err := eng.GetPool(params.PoolID)
		if err != nil {
			return err
		}
		totalShares = pool.TotalShares
		return nil
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	metrics.Vault().SetTotalShares(params.PoolID, totalShares)
	writeResult(w, req.ID, vaultDepositResult{Shares: shares.String()})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params vaultWithdrawParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	owner, rpcErr := parseOwner(params.Owner)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	shares, rpcErr := parseAmount(params.Shares)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	var amount, totalShares *big.Int
	err := s.withPool(params.PoolID, "withdraw", func(eng *vault.Engine) error {
		released, err := eng.Withdraw(owner, params.PoolID, shares)
		if err != nil {
			return err
		}
		amount = released
		pool, err := eng.GetPool(params.PoolID)
		if err != nil {
			return err
		}
		totalShares = pool.TotalShares
		return nil
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	metrics.Vault().SetTotalShares(params.PoolID, totalShares)
	writeResult(w, req.ID, vaultWithdrawResult{Amount: amount.String()})
}

func (s *Server) handleClaimRewards(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params vaultClaimParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	owner, rpcErr := parseOwner(params.Owner)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	var paid *big.Int
	err := s.withPool(params.PoolID, "claimRewards", func(eng *vault.Engine) error {
		amount, err := eng.ClaimRewards(owner, params.PoolID)
		if err != nil {
			return err
		}
		paid = amount
		return nil
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	metrics.Vault().AddRewardsPaid(params.PoolID, paid)
	writeResult(w, req.ID, vaultClaimResult{Amount: paid.String()})
}

func (s *Server) handleFundRewards(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	var params vaultFundParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	funder, rpcErr := parseOwner(params.Funder)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	amount, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	rate, rpcErr := parseAmount(params.RatePerSecond)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	err := s.withPool(params.PoolID, "fundRewards", func(eng *vault.Engine) error {
		return eng.FundRewards(funder, params.PoolID, amount, rate)
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	metrics.Vault().AddRewardsFunded(params.PoolID, amount)
	writeResult(w, req.ID, vaultFundResult{PoolID: params.PoolID, RatePerSecond: rate.String()})
}

func (s *Server) handleGetPool(w http.ResponseWriter, req *RPCRequest) {
	var params vaultPoolQueryParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	pool, err := s.engineFor(s.ledger).GetPool(params.PoolID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, poolResult(pool))
}

func (s *Server) handleGetPosition(w http.ResponseWriter, req *RPCRequest) {
	var params vaultPositionQueryParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	owner, rpcErr := parseOwner(params.Owner)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	eng := s.engineFor(s.ledger)
	pos, err := eng.GetPosition(params.PoolID, owner)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	claimable, err := eng.PendingReward(params.PoolID, owner)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, vaultPositionResult{
		Owner:         pos.Owner.String(),
		PoolID:        pos.PoolID,
		Shares:        pos.Shares.String(),
		PendingReward: pos.PendingReward.String(),
		ClaimableNow:  claimable.String(),
	})
}

func (s *Server) handleBalanceOf(w http.ResponseWriter, req *RPCRequest) {
	var params vaultBalanceParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	account, rpcErr := parseOwner(params.Account)
	if rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	balance, err := s.ledger.BalanceOf(strings.TrimSpace(params.Asset), account)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, vaultBalanceResult{
		Asset:   strings.TrimSpace(params.Asset),
		Account: account.String(),
		Amount:  balance.String(),
	})
}
