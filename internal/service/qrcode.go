package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"dinein-service/internal/apperr"
	"dinein-service/internal/util"

	"github.com/skip2/go-qrcode"
)

type QRGenerator interface {
	Generate(ctx context.Context, tableID string) ([]byte, error)
}

// TableQRGenerator renders the PNG printed on a table. The code encodes the
// scan URL carrying the table's secret token.
type TableQRGenerator struct {
	repo    Transactor
	BaseURL string
	Size    int
}

func NewTableQRGenerator(repo Transactor, baseURL string) *TableQRGenerator {
	return &TableQRGenerator{repo: repo, BaseURL: strings.TrimRight(baseURL, "/"), Size: 256}
}

func (g *TableQRGenerator) Generate(ctx context.Context, tableID string) ([]byte, error) {
	ctx, span := util.StartSpan(ctx, "TableQRGenerator.Generate")
	defer span.End()

	table, err := g.repo.GetTable(ctx, tableID)
	if err != nil {
		return nil, lookup(err, apperr.ErrTableNotFound)
	}

	png, err := qrcode.Encode(ScanURL(g.BaseURL, table.QRCode, table.ID, table.RestaurantID), qrcode.Medium, g.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}
	return png, nil
}

// ScanURL is the link a diner's camera opens.
func ScanURL(baseURL, qrCode, tableID, restaurantID string) string {
	q := url.Values{}
	q.Set("qr", qrCode)
	q.Set("table", tableID)
	q.Set("restaurant", restaurantID)
	return fmt.Sprintf("%s/scan?%s", baseURL, q.Encode())
}
