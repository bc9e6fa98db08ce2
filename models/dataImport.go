package models

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/segments_backend/config"
	"github.com/mmdatafocus/segments_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ImportChunkSize bounds per-transaction size and lock duration while
// amortizing per-transaction overhead.
const ImportChunkSize = 1000

var importTracer = otel.Tracer("segments-backend/import")

// Source file header columns.
const (
	colOrderId       = "Order ID"
	colCustomerId    = "Customer ID"
	colCustomerName  = "Customer Name"
	colCustomerEmail = "Customer Email"
	colCustomerAddr  = "Customer Address"
	colProductId     = "Product ID"
	colProductName   = "Product Name"
	colCategory      = "Category"
	colRegion        = "Region"
	colDateOfSale    = "Date of Sale"
	colQuantity      = "Quantity Sold"
	colUnitPrice     = "Unit Price"
	colDiscount      = "Discount"
	colShippingCost  = "Shipping Cost"
	colPaymentMethod = "Payment Method"
)

type importRow map[string]string

// ProcessFile runs one refresh end to end: parse the source file, commit it
// in chunks, finalize the refresh log. Once the run is registered the log is
// returned alongside any error, so failed runs still carry their audit record.
// Every failure path finalizes the log before propagating.
func ProcessFile(ctx context.Context, filePath string) (*DataRefreshLog, error) {
	ctx, span := importTracer.Start(ctx, "ProcessFile")
	defer span.End()

	refreshLog, err := CreateRefreshLog(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := parseRecordFile(filePath)
	if err != nil {
		failRun(ctx, refreshLog, err)
		return refreshLog, err
	}

	if err := commitRows(ctx, refreshLog, rows); err != nil {
		failRun(ctx, refreshLog, err)
		return refreshLog, err
	}

	if err := refreshLog.finalize(ctx, RefreshStatusSuccess, ""); err != nil {
		return refreshLog, err
	}
	// New orders make every cached segment page stale.
	if err := invalidateSegmentCache(); err != nil {
		config.LogError(config.GetLogger(), "models", "ProcessFile", "invalidate segment cache", refreshLog.ID, err)
	}
	return refreshLog, nil
}

// failRun finalizes the log as failed without masking the run error.
func failRun(ctx context.Context, refreshLog *DataRefreshLog, runErr error) {
	if err := refreshLog.finalize(ctx, RefreshStatusFailed, runErr.Error()); err != nil {
		config.LogError(config.GetLogger(), "models", "failRun", "finalize refresh log", refreshLog.ID, err)
	}
}

// commitRows processes the decoded rows in fixed-size chunks, one transaction
// per chunk. Chunk N+1 does not start until chunk N committed; on failure the
// failing chunk rolls back and prior chunks stand.
func commitRows(ctx context.Context, refreshLog *DataRefreshLog, rows []importRow) error {
	db := config.GetDB()
	processed := 0
	for _, chunk := range utils.ChunkSlice(rows, ImportChunkSize) {
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := insertChunk(tx, chunk); err != nil {
				return err
			}
			// Progress travels with the chunk: not observable until commit.
			return refreshLog.setRecordsProcessed(tx, processed+len(chunk))
		})
		if err != nil {
			return err
		}
		processed += len(chunk)
	}
	return nil
}

// insertChunk derives and bulk-inserts the three entity sets. Customers and
// products commit before the orders that reference them by business key.
// Existing business keys are skipped (ON DUPLICATE KEY), which makes
// re-ingestion of overlapping files idempotent.
func insertChunk(tx *gorm.DB, chunk []importRow) error {
	customers := deriveCustomers(chunk)
	if len(customers) > 0 {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&customers).Error; err != nil {
			return err
		}
	}

	products, err := deriveProducts(chunk)
	if err != nil {
		return err
	}
	if len(products) > 0 {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&products).Error; err != nil {
			return err
		}
	}

	orders, err := deriveOrders(chunk)
	if err != nil {
		return err
	}
	if len(orders) > 0 {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&orders).Error; err != nil {
			return err
		}
	}
	return nil
}

func deriveCustomers(chunk []importRow) []*Customer {
	customers := make([]*Customer, 0, len(chunk))
	for _, row := range chunk {
		customers = append(customers, &Customer{
			CustomerId: row[colCustomerId],
			Name:       row[colCustomerName],
			Email:      row[colCustomerEmail],
			Address:    row[colCustomerAddr],
		})
	}
	return customers
}

func deriveProducts(chunk []importRow) ([]*Product, error) {
	products := make([]*Product, 0, len(chunk))
	for _, row := range chunk {
		unitPrice, err := decimal.NewFromString(strings.TrimSpace(row[colUnitPrice]))
		if err != nil {
			return nil, &utils.InvalidRowError{OrderId: row[colOrderId], Field: colUnitPrice, Err: err}
		}
		products = append(products, &Product{
			ProductId: row[colProductId],
			Name:      row[colProductName],
			Category:  row[colCategory],
			UnitPrice: unitPrice,
		})
	}
	return products, nil
}

func deriveOrders(chunk []importRow) ([]*Order, error) {
	orders := make([]*Order, 0, len(chunk))
	for _, row := range chunk {
		orderId := row[colOrderId]

		quantity, err := strconv.Atoi(strings.TrimSpace(row[colQuantity]))
		if err != nil {
			return nil, &utils.InvalidRowError{OrderId: orderId, Field: colQuantity, Err: err}
		}
		unitPrice, err := decimal.NewFromString(strings.TrimSpace(row[colUnitPrice]))
		if err != nil {
			return nil, &utils.InvalidRowError{OrderId: orderId, Field: colUnitPrice, Err: err}
		}
		discount, err := decimal.NewFromString(strings.TrimSpace(row[colDiscount]))
		if err != nil {
			return nil, &utils.InvalidRowError{OrderId: orderId, Field: colDiscount, Err: err}
		}
		shippingCost, err := decimal.NewFromString(strings.TrimSpace(row[colShippingCost]))
		if err != nil {
			return nil, &utils.InvalidRowError{OrderId: orderId, Field: colShippingCost, Err: err}
		}
		dateOfSale, err := parseDateOfSale(row[colDateOfSale])
		if err != nil {
			return nil, &utils.InvalidRowError{OrderId: orderId, Field: colDateOfSale, Err: err}
		}

		orders = append(orders, &Order{
			OrderId:       orderId,
			CustomerId:    row[colCustomerId],
			ProductId:     row[colProductId],
			Region:        row[colRegion],
			DateOfSale:    dateOfSale,
			Quantity:      quantity,
			UnitPrice:     unitPrice,
			Discount:      discount,
			ShippingCost:  shippingCost,
			PaymentMethod: row[colPaymentMethod],
			TotalAmount:   OrderTotalAmount(quantity, unitPrice, discount, shippingCost),
		})
	}
	return orders, nil
}

var dateOfSaleLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
}

func parseDateOfSale(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateOfSaleLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognized date " + strconv.Quote(value))
}

// parseRecordFile decodes a source file into ordered row maps keyed by header
// column. CSV is the default; .xlsx workbooks are read from their first sheet
// with the same header-row contract.
func parseRecordFile(filePath string) ([]importRow, error) {
	if strings.EqualFold(filepath.Ext(filePath), ".xlsx") {
		return parseWorkbook(filePath)
	}
	return parseDelimited(filePath)
}

func parseDelimited(filePath string) ([]importRow, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, &utils.ParseError{Path: filePath, Err: err}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	// First row is always headers.
	headers, err := reader.Read()
	if err != nil {
		return nil, &utils.ParseError{Path: filePath, Err: err}
	}

	var rows []importRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &utils.ParseError{Path: filePath, Err: err}
		}
		rows = append(rows, rowFromRecord(headers, record))
	}
	return rows, nil
}

func parseWorkbook(filePath string) ([]importRow, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, &utils.ParseError{Path: filePath, Err: err}
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, &utils.ParseError{Path: filePath, Err: err}
	}
	if len(records) == 0 {
		return nil, &utils.ParseError{Path: filePath, Err: errors.New("missing header row")}
	}

	headers := records[0]
	var rows []importRow
	for _, record := range records[1:] {
		if isBlankRecord(record) {
			continue
		}
		rows = append(rows, rowFromRecord(headers, record))
	}
	return rows, nil
}

// rowFromRecord pads short records so every header key resolves.
func rowFromRecord(headers []string, record []string) importRow {
	row := make(importRow, len(headers))
	for i, header := range headers {
		if i < len(record) {
			row[header] = record[i]
		} else {
			row[header] = ""
		}
	}
	return row
}

func isBlankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
