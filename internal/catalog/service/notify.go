package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/develoddy/api-sequelize-sub002/internal/shared/feishu"
	"go.uber.org/zap"
)

// Notifier receives a card after every finished sync run.
type Notifier interface {
	SendCard(ctx context.Context, card feishu.InteractiveCard) error
}

const (
	notifyTimeout = 10 * time.Second
	// at most this many detail lines per card
	maxCardDetails = 10
)

// runNotifier is embedded by the sync services.
type runNotifier struct {
	notifier     Notifier
	onlyFailures bool
}

// SetNotifier 设置同步结果通知（可选）
func (n *runNotifier) SetNotifier(notifier Notifier, onlyFailures bool) {
	n.notifier = notifier
	n.onlyFailures = onlyFailures
}

// notify sends the card detached from ctx so a cancelled run still reports.
// Send failures are logged and never change the run outcome.
func (n *runNotifier) notify(ctx context.Context, log *zap.Logger, failed bool, card func() feishu.InteractiveCard) {
	if n.notifier == nil || (n.onlyFailures && !failed) {
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := n.notifier.SendCard(sendCtx, card()); err != nil {
		log.Warn("sync notification failed", zap.Error(err))
	}
}

func failureCard(title string, err error) feishu.InteractiveCard {
	stage := "-"
	var se *StageError
	if errors.As(err, &se) {
		stage = se.Stage
	}
	return feishu.NewReportCard(title+" failed", true,
		[]feishu.Field{{Label: "Stage", Value: stage}},
		[]string{err.Error()},
	)
}

func catalogCard(r *SyncReport) feishu.InteractiveCard {
	fields := []feishu.Field{
		{Label: "Processed", Value: strconv.Itoa(r.ProductsProcessed)},
		{Label: "Created", Value: strconv.Itoa(r.Created)},
		{Label: "Updated", Value: strconv.Itoa(r.Updated)},
		{Label: "Discontinued", Value: strconv.Itoa(r.Deleted)},
		{Label: "Skipped", Value: strconv.Itoa(r.Skipped)},
		{Label: "Variants", Value: fmt.Sprintf("+%d ~%d -%d", r.Variants.Created, r.Variants.Updated, r.Variants.Deleted)},
		{Label: "Galleries", Value: fmt.Sprintf("+%d -%d", r.Galleries.Created, r.Galleries.Deleted)},
		{Label: "Duration", Value: r.Duration},
	}
	details := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		details = append(details, fmt.Sprintf("%s: %s", e.Product, e.Message))
	}
	return feishu.NewReportCard("Catalog sync", len(r.Errors) > 0, fields, truncateDetails(details))
}

func stockCard(r *StockSyncReport) feishu.InteractiveCard {
	fields := []feishu.Field{
		{Label: "Products", Value: strconv.Itoa(r.Total)},
		{Label: "Updated", Value: strconv.Itoa(r.Updated)},
		{Label: "Discontinued", Value: strconv.Itoa(r.Discontinued)},
		{Label: "Price changes", Value: strconv.Itoa(len(r.PriceChanges))},
		{Label: "Duration", Value: r.Duration},
	}
	details := make([]string, 0, len(r.PriceChanges)+len(r.Errors))
	for _, pc := range r.PriceChanges {
		details = append(details, fmt.Sprintf("%s %s: %s -> %s (%s%%)",
			pc.Product, pc.SKU, pc.OldPrice.StringFixed(2), pc.NewPrice.StringFixed(2), pc.PercentChange.String()))
	}
	for _, e := range r.Errors {
		details = append(details, fmt.Sprintf("%s: %s", e.Product, e.Message))
	}
	return feishu.NewReportCard("Stock sync", len(r.Errors) > 0, fields, truncateDetails(details))
}

func truncateDetails(lines []string) []string {
	if len(lines) <= maxCardDetails {
		return lines
	}
	more := len(lines) - maxCardDetails
	return append(lines[:maxCardDetails:maxCardDetails], fmt.Sprintf("... %d more", more))
}
