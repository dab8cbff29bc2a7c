package economy

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/himera-wallet/internal/domain"
	apperrors "github.com/Proton-105/himera-wallet/internal/errors"
	"github.com/Proton-105/himera-wallet/internal/ledger"
	"github.com/Proton-105/himera-wallet/internal/notify"
	"github.com/Proton-105/himera-wallet/internal/wallet"
	"github.com/Proton-105/himera-wallet/pkg/metrics"
)

// MaxGiftQuantity bounds a single send.
const MaxGiftQuantity = 999

// SendGiftInput describes one gift send.
type SendGiftInput struct {
	ReceiverID string
	GiftID     string
	Quantity   int
	Message    string
}

// GiftReceipt is returned to the sender.
type GiftReceipt struct {
	GiftRecordID        string          `json:"gift_record_id"`
	Gift                Gift            `json:"gift"`
	Quantity            int             `json:"quantity"`
	TotalCost           decimal.Decimal `json:"total_cost"`
	CharityContribution decimal.Decimal `json:"charity_contribution"`
	ReceiverEarned      decimal.Decimal `json:"receiver_earned"`
	Wallet              *domain.Wallet  `json:"wallet"`
	TransactionID       string          `json:"transaction_id"`
}

// SplitGift divides a gift's total value between the charity wallet and the receiver.
func SplitGift(total decimal.Decimal) (charity, receiver decimal.Decimal) {
	charity = domain.Percent(total, GiftCharityPercent)
	return charity, total.Sub(charity)
}

// SendGift debits the sender's coins and credits the receiver's stars, minus the charity share.
func (s *Service) SendGift(ctx context.Context, senderID string, in SendGiftInput) (*GiftReceipt, error) {
	if in.Quantity < 1 || in.Quantity > MaxGiftQuantity {
		return nil, apperrors.ErrInvalidQuantity
	}

	g, err := s.catalog.Lookup(in.GiftID)
	if err != nil {
		return nil, err
	}

	var receiverName string
	err = s.engine.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
		receiver, err := tx.GetUser(ctx, in.ReceiverID)
		if errors.Is(err, ledger.ErrNotFound) {
			return apperrors.ErrReceiverNotFound
		}
		if err != nil {
			return err
		}
		receiverName = displayName(receiver)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if in.ReceiverID == senderID {
		return nil, apperrors.ErrSelfGift
	}

	total := g.Price.Mul(decimal.NewFromInt(int64(in.Quantity)))
	charity, receiverAmount := SplitGift(total)

	receipt := &GiftReceipt{
		GiftRecordID:        domain.NewID("gift"),
		Gift:                g,
		Quantity:            in.Quantity,
		TotalCost:           total,
		CharityContribution: charity,
		ReceiverEarned:      receiverAmount,
	}
	var senderName string

	err = s.engine.Execute(ctx, "gift_send", []string{senderID, in.ReceiverID}, func(ctx context.Context, b *wallet.Batch) error {
		tx := b.Tx()
		if b.Wallet(senderID).Coins.LessThan(total) {
			return apperrors.ErrInsufficientBalance
		}

		senderName = senderID
		if sender, err := tx.GetUser(ctx, senderID); err == nil {
			senderName = displayName(sender)
		}

		debit, err := b.Stage(wallet.Posting{
			UserID:      senderID,
			Field:       domain.FieldCoins,
			Delta:       total.Neg(),
			Type:        domain.TxGiftSent,
			ReferenceID: receipt.GiftRecordID,
			Description: fmt.Sprintf("Sent %dx %s to %s", in.Quantity, g.Name, receiverName),
		})
		if err != nil {
			return err
		}
		if _, err := b.Stage(wallet.Posting{
			UserID:      in.ReceiverID,
			Field:       domain.FieldStars,
			Delta:       receiverAmount,
			Type:        domain.TxGiftReceived,
			ReferenceID: receipt.GiftRecordID,
			Description: fmt.Sprintf("Received %dx %s from %s", in.Quantity, g.Name, senderName),
		}); err != nil {
			return err
		}

		if err := tx.AddCharity(ctx, charity, b.Now()); err != nil {
			return err
		}
		if err := tx.InsertCharityContribution(ctx, &domain.CharityContribution{
			ContributionID: domain.NewID("char"),
			UserID:         senderID,
			Amount:         charity,
			Source:         domain.CharitySourceGift,
			ReferenceID:    receipt.GiftRecordID,
			CreatedAt:      b.Now(),
		}); err != nil {
			return err
		}
		if err := tx.InsertGiftRecord(ctx, &domain.GiftRecord{
			GiftRecordID:   receipt.GiftRecordID,
			SenderID:       senderID,
			ReceiverID:     in.ReceiverID,
			GiftID:         g.GiftID,
			GiftName:       g.Name,
			GiftPrice:      g.Price,
			Quantity:       in.Quantity,
			TotalValue:     total,
			CharityAmount:  charity,
			ReceiverAmount: receiverAmount,
			Message:        in.Message,
			CreatedAt:      b.Now(),
		}); err != nil {
			return err
		}
		if err := tx.TouchAgency(ctx, in.ReceiverID, b.Now()); err != nil {
			return err
		}

		receipt.TransactionID = debit.TransactionID
		receipt.Wallet = b.Wallet(senderID).Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordCharityInflow(domain.CharitySourceGift, charity.InexactFloat64())

	s.engine.Notify(ctx, notify.Event{
		UserID:   in.ReceiverID,
		Key:      "gift_received",
		Category: notify.CategoryGift,
		Params: map[string]string{
			"sender":   senderName,
			"quantity": strconv.Itoa(in.Quantity),
			"gift":     g.Name,
			"stars":    receiverAmount.String(),
			"message":  in.Message,
		},
		ActionURL: "/gifts",
	})

	return receipt, nil
}

func displayName(u *domain.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.UserID
}

// GiftsSent lists the newest gifts the user sent.
func (s *Service) GiftsSent(ctx context.Context, userID string, limit int) ([]domain.GiftRecord, error) {
	return s.listGifts(ctx, ledger.GiftFilter{SenderID: userID, Limit: giftLimit(limit)})
}

// GiftsReceived lists the newest gifts the user received.
func (s *Service) GiftsReceived(ctx context.Context, userID string, limit int) ([]domain.GiftRecord, error) {
	return s.listGifts(ctx, ledger.GiftFilter{ReceiverID: userID, Limit: giftLimit(limit)})
}

func giftLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}

func (s *Service) listGifts(ctx context.Context, filter ledger.GiftFilter) ([]domain.GiftRecord, error) {
	var records []domain.GiftRecord
	err := s.engine.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		records, err = tx.ListGiftRecords(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// GiftLeaderboard holds the top senders and receivers by total gift value.
type GiftLeaderboard struct {
	TopSenders   []domain.LeaderboardEntry `json:"top_senders"`
	TopReceivers []domain.LeaderboardEntry `json:"top_receivers"`
}

func (s *Service) GiftLeaderboard(ctx context.Context) (*GiftLeaderboard, error) {
	board := &GiftLeaderboard{}
	err := s.engine.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		if board.TopSenders, err = tx.GiftLeaderboard(ctx, ledger.GiftSender, 10); err != nil {
			return err
		}
		board.TopReceivers, err = tx.GiftLeaderboard(ctx, ledger.GiftReceiver, 10)
		return err
	})
	if err != nil {
		return nil, err
	}
	return board, nil
}
