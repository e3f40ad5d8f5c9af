package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TransactionType string

const (
	TransactionPayment TransactionType = "PAYMENT"
	TransactionPayout  TransactionType = "PAYOUT"
	TransactionRefund  TransactionType = "REFUND"
)

type Transaction struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    string             `bson:"user_id" json:"userId"`
	JobID     string             `bson:"job_id" json:"jobId"`
	Amount    float64            `bson:"amount" json:"amount"`
	Type      TransactionType    `bson:"type" json:"type"`
	PaymentID string             `bson:"payment_id,omitempty" json:"paymentId,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
}

// WorkerFeePercent is deducted from the worker's payout.
const WorkerFeePercent = 10

type Settlement struct {
	AmountMinor    int64   `json:"amount"`
	PlatformFee    float64 `json:"platformFee"`
	WorkerEarnings float64 `json:"workerEarnings"`
}

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a rupee amount to paise, rounding half away from zero.
func ToMinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(hundred).Round(0).IntPart()
}

// ComputeSettlement splits a job charge into the platform fee and the
// worker's earnings, both rounded to two decimal places.
func ComputeSettlement(charge float64) Settlement {
	c := decimal.NewFromFloat(charge)
	fee := c.Mul(decimal.NewFromInt(WorkerFeePercent)).Div(hundred).Round(2)
	earnings := c.Sub(fee).Round(2)
	feeF, _ := fee.Float64()
	earnF, _ := earnings.Float64()
	return Settlement{
		AmountMinor:    ToMinorUnits(charge),
		PlatformFee:    feeF,
		WorkerEarnings: earnF,
	}
}
