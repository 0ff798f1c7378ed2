package wallet

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/hitoshi/miniwallet/internal/apiclient"
	"github.com/hitoshi/miniwallet/internal/model"
)

// RemoteSource はウォレットAPIから残高とトランザクションを取得する。
// 401を受けるとapiclientがトークンを破棄し、ログアウトのフックを呼ぶ。
type RemoteSource struct {
	client *apiclient.Client
}

// NewRemoteSource はRemoteSourceを生成する。
func NewRemoteSource(client *apiclient.Client) *RemoteSource {
	return &RemoteSource{client: client}
}

type balanceDTO struct {
	Confirmed   int64 `json:"confirmed"`
	Unconfirmed int64 `json:"unconfirmed"`
}

type transactionDTO struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Amount        int64     `json:"amount"`
	Address       string    `json:"address"`
	Confirmations int       `json:"confirmations"`
	Timestamp     time.Time `json:"timestamp"`
	TxHash        string    `json:"txHash"`
	Status        string    `json:"status"`
	BlockHeight   *int32    `json:"blockHeight"`
	Fee           int64     `json:"fee"`
	Size          *int      `json:"size"`
	Category      string    `json:"category"`
}

// FetchBalance はGET /balanceの結果を返す。金額はsatoshi単位。
func (s *RemoteSource) FetchBalance(ctx context.Context) (model.Balance, error) {
	var dto balanceDTO
	if err := s.client.JSON(ctx, http.MethodGet, "balance", nil, &dto); err != nil {
		return model.Balance{}, err
	}
	if dto.Confirmed < 0 || dto.Unconfirmed < 0 {
		return model.Balance{}, fmt.Errorf("negative balance in response")
	}
	return model.Balance{
		Confirmed:   btcutil.Amount(dto.Confirmed),
		Unconfirmed: btcutil.Amount(dto.Unconfirmed),
	}, nil
}

// FetchTransactions はGET /transactionsの結果を返す。不変条件を満たさない要素があればエラーにする。
func (s *RemoteSource) FetchTransactions(ctx context.Context) ([]model.Transaction, error) {
	var dtos []transactionDTO
	if err := s.client.JSON(ctx, http.MethodGet, "transactions", nil, &dtos); err != nil {
		return nil, err
	}

	txs := make([]model.Transaction, 0, len(dtos))
	for _, d := range dtos {
		tx := model.Transaction{
			ID:                  d.ID,
			Type:                model.TransactionType(d.Type),
			Amount:              btcutil.Amount(d.Amount),
			CounterpartyAddress: d.Address,
			Confirmations:       d.Confirmations,
			Timestamp:           d.Timestamp,
			TxHash:              d.TxHash,
			Status:              model.TransactionStatus(d.Status),
			BlockHeight:         d.BlockHeight,
			Fee:                 btcutil.Amount(d.Fee),
			Size:                d.Size,
			Category:            model.TransactionCategory(d.Category),
		}
		if err := tx.Validate(); err != nil {
			return nil, fmt.Errorf("invalid transaction in response: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}
