package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/segments_backend/config"
	"github.com/mmdatafocus/segments_backend/models"
	"github.com/mmdatafocus/segments_backend/utils"
	"github.com/shopspring/decimal"
)

const importHeader = "Order ID,Customer ID,Customer Name,Customer Email,Customer Address,Product ID,Product Name,Category,Region,Date of Sale,Quantity Sold,Unit Price,Discount,Shipping Cost,Payment Method"

func importLine(orderId, customerId, productId, category, region, date string, qty int, price string) string {
	return fmt.Sprintf("%s,%s,Customer %s,%s@example.com,1 Main St,%s,Product %s,%s,%s,%s,%d,%s,0,0,Credit Card",
		orderId, customerId, customerId, customerId, productId, productId, category, region, date, qty, price)
}

func TestIngestAndSegmentMatchingEndToEnd(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "segments_test")

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()
	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}

	// CUST-1: two Electronics orders. CUST-2: one Electronics order and five
	// Furniture orders. CUST-3: one Furniture order in the South.
	lines := []string{
		importHeader,
		importLine("ORD-1", "CUST-1", "PROD-E1", "Electronics", "North", "2024-01-10", 1, "100"),
		importLine("ORD-2", "CUST-1", "PROD-E2", "Electronics", "North", "2024-02-11", 2, "50"),
		importLine("ORD-3", "CUST-2", "PROD-E1", "Electronics", "North", "2024-01-15", 1, "100"),
		importLine("ORD-4", "CUST-2", "PROD-F1", "Furniture", "North", "2024-01-16", 1, "10"),
		importLine("ORD-5", "CUST-2", "PROD-F1", "Furniture", "North", "2024-01-17", 1, "10"),
		importLine("ORD-6", "CUST-2", "PROD-F1", "Furniture", "North", "2024-01-18", 1, "10"),
		importLine("ORD-7", "CUST-2", "PROD-F1", "Furniture", "North", "2024-01-19", 1, "10"),
		importLine("ORD-8", "CUST-2", "PROD-F1", "Furniture", "North", "2024-01-20", 1, "10"),
		importLine("ORD-9", "CUST-3", "PROD-F2", "Furniture", "South", "2024-03-01", 3, "25"),
	}
	filePath := filepath.Join(t.TempDir(), "sales.csv")
	if err := os.WriteFile(filePath, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	refreshLog, err := models.ProcessFile(ctx, filePath)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if refreshLog.Status != models.RefreshStatusSuccess {
		t.Fatalf("status = %s, want success (error=%q)", refreshLog.Status, refreshLog.Error)
	}
	if refreshLog.RecordsProcessed != 9 {
		t.Fatalf("recordsProcessed = %d, want 9", refreshLog.RecordsProcessed)
	}
	if refreshLog.CompletedAt == nil {
		t.Fatal("completedAt not set on terminal status")
	}

	countRows := func(model interface{}) int64 {
		var n int64
		if err := db.WithContext(ctx).Model(model).Count(&n).Error; err != nil {
			t.Fatalf("count %T: %v", model, err)
		}
		return n
	}
	if n := countRows(&models.Customer{}); n != 3 {
		t.Fatalf("customers = %d, want 3", n)
	}
	if n := countRows(&models.Product{}); n != 4 {
		t.Fatalf("products = %d, want 4", n)
	}
	if n := countRows(&models.Order{}); n != 9 {
		t.Fatalf("orders = %d, want 9", n)
	}

	// Re-ingesting the identical file must be a no-op for the store but still
	// produce a fresh audited run.
	secondLog, err := models.ProcessFile(ctx, filePath)
	if err != nil {
		t.Fatalf("re-ingest: %v", err)
	}
	if secondLog.ID == refreshLog.ID {
		t.Fatal("re-ingest reused the first run's log")
	}
	if secondLog.RecordsProcessed != 9 {
		t.Fatalf("re-ingest recordsProcessed = %d, want 9", secondLog.RecordsProcessed)
	}
	if n := countRows(&models.Order{}); n != 9 {
		t.Fatalf("orders after re-ingest = %d, want 9 (idempotent skip)", n)
	}

	// minPurchases=2 in Electronics: CUST-1 matches; CUST-2 has only one
	// Electronics order and must not match despite five Furniture orders.
	minTwo := 2
	electronics, err := models.CreateSegment(ctx, &models.NewCustomerSegment{
		Name: "Electronics regulars",
		Criteria: &models.SegmentationCriteria{
			MinPurchases: &minTwo,
			Categories:   []string{"Electronics"},
		},
	})
	if err != nil {
		t.Fatalf("CreateSegment: %v", err)
	}
	customers, total, err := models.GetSegmentCustomers(ctx, electronics.ID, 1, 10)
	if err != nil {
		t.Fatalf("GetSegmentCustomers: %v", err)
	}
	if total != 1 || len(customers) != 1 {
		t.Fatalf("matched = %d/%d, want 1/1", len(customers), total)
	}
	matched := customers[0]
	if matched.CustomerId != "CUST-1" {
		t.Fatalf("matched customer = %s, want CUST-1", matched.CustomerId)
	}
	// Enrichment reads every order in the date window, not just the matched
	// category: CUST-1 has orders worth 100 + 100 = 200.
	if !matched.TotalSpent.Equal(decimal.RequireFromString("200")) {
		t.Fatalf("totalSpent = %s, want 200", matched.TotalSpent)
	}
	if matched.TotalOrders != 2 {
		t.Fatalf("totalOrders = %d, want 2", matched.TotalOrders)
	}
	if !matched.AvgOrderValue.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("avgOrderValue = %s, want 100", matched.AvgOrderValue)
	}
	if len(matched.Categories) != 1 || matched.Categories[0] != "Electronics" {
		t.Fatalf("categories = %v", matched.Categories)
	}

	// Segment names are unique; a second create with the same name is a
	// duplicate-key error, not a silent second row.
	_, err = models.CreateSegment(ctx, &models.NewCustomerSegment{
		Name:     "Electronics regulars",
		Criteria: &models.SegmentationCriteria{},
	})
	if !utils.IsDuplicateEntryError(err) {
		t.Fatalf("duplicate segment name: err = %v, want MySQL duplicate entry", err)
	}

	// An empty criteria matches every customer with at least one order.
	everyone, err := models.CreateSegment(ctx, &models.NewCustomerSegment{
		Name:     "All purchasers",
		Criteria: &models.SegmentationCriteria{},
	})
	if err != nil {
		t.Fatalf("CreateSegment: %v", err)
	}
	_, total, err = models.GetSegmentCustomers(ctx, everyone.ID, 1, 10)
	if err != nil {
		t.Fatalf("GetSegmentCustomers: %v", err)
	}
	if total != 3 {
		t.Fatalf("empty criteria matched %d customers, want 3", total)
	}

	// A date window past every order must match nobody rather than enrich
	// with stale aggregates.
	if err := db.WithContext(ctx).Model(&models.CustomerSegment{}).
		Where("id = ?", everyone.ID).
		Update("criteria", []byte(`{"startDate":"2099-01-01"}`)).Error; err != nil {
		t.Fatalf("rewrite criteria: %v", err)
	}
	_, total, err = models.GetSegmentCustomers(ctx, everyone.ID, 1, 10)
	if err != nil {
		t.Fatalf("GetSegmentCustomers(future window): %v", err)
	}
	if total != 0 {
		t.Fatalf("future window matched %d customers, want 0", total)
	}
}

func TestIngestFailsMidRunKeepsCommittedChunks(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "segments_test")

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()
	db := config.GetDB()

	// 1500 rows; row 1200 has an unparseable date. Chunk 1 (1000 rows) must
	// commit and stand; chunk 2 must roll back entirely.
	lines := []string{importHeader}
	for i := 1; i <= 1500; i++ {
		date := "2024-01-10"
		if i == 1200 {
			date = "not-a-date"
		}
		lines = append(lines, importLine(
			fmt.Sprintf("ORD-%d", i),
			fmt.Sprintf("CUST-%d", i),
			fmt.Sprintf("PROD-%d", i),
			"Electronics", "North", date, 1, "10"))
	}
	filePath := filepath.Join(t.TempDir(), "sales-bad-date.csv")
	if err := os.WriteFile(filePath, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	refreshLog, err := models.ProcessFile(ctx, filePath)
	if err == nil {
		t.Fatal("expected run failure for unparseable date")
	}
	if refreshLog == nil {
		t.Fatal("failed run must still return its log")
	}
	if refreshLog.Status != models.RefreshStatusFailed {
		t.Fatalf("status = %s, want failed", refreshLog.Status)
	}
	if !strings.Contains(refreshLog.Error, "ORD-1200") {
		t.Fatalf("log error %q does not name the offending order", refreshLog.Error)
	}
	if refreshLog.RecordsProcessed != 1000 {
		t.Fatalf("recordsProcessed = %d, want 1000 (only chunk 1 committed)", refreshLog.RecordsProcessed)
	}

	var orderCount int64
	if err := db.WithContext(ctx).Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 1000 {
		t.Fatalf("orders = %d, want 1000 (second chunk rolled back)", orderCount)
	}
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("segments-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=segments_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
