package marketindex

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// SaveSeriesToCSV writes the index series to a CSV file. Lookup-unavailable
// cells are left empty, matching how the report layer renders them.
func SaveSeriesToCSV(series IndexSeries, outputPath string) error {
	if len(series) == 0 {
		return fmt.Errorf("no index series to save")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Month",
		"Sales_Count",
		"Median_Price",
		"Thin_Month",
		"Index_Raw",
		"Index_Smoothed",
		"Index_Std",
		"Index_Regression",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}

	for _, p := range series {
		record := []string{
			p.Month.Format("2006-01-02"),
			strconv.Itoa(p.SalesCount),
			formatFloat(p.MedianPrice, 2),
			strconv.FormatBool(p.Thin),
			formatFloat(p.RawIndex, 6),
			formatFloat(p.SmoothedIndex, 6),
			formatFloat(p.StdDev, 6),
			formatFloat(p.RegressionIndex, 6),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write CSV record for %s: %w", p.Month.Format("2006-01"), err)
		}
	}

	return nil
}

// SaveAdjustmentsToCSV writes the comparable adjustment rows to a CSV file
func SaveAdjustmentsToCSV(rows []ComparableAdjustment, outputPath string) error {
	if len(rows) == 0 {
		return fmt.Errorf("no adjustment rows to save")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Record_ID",
		"Address",
		"Contract_Date",
		"Sale_Price",
		"Index_Contract",
		"Index_Effective",
		"Days_From_Effective",
		"Adjustment_Applied",
		"Adj_Pct",
		"Adj_Dollar",
		"Category",
		"Direction",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}

	for _, row := range rows {
		adjPct, adjDollar := "", ""
		if row.Defined {
			adjPct = formatFloat(row.PercentAdjustment, 2)
			adjDollar = formatFloat(row.DollarAdjustment, 0)
		}
		contractIdx := ""
		if row.ContractResolution.Available() {
			contractIdx = formatFloat(row.ContractIndex, 6)
		}

		record := []string{
			strconv.FormatInt(row.RecordID, 10),
			row.Address,
			row.ContractDate.Format("2006-01-02"),
			formatFloat(row.SalePrice, 0),
			contractIdx,
			formatFloat(row.EffectiveIndex, 6),
			strconv.Itoa(row.DaysFromEffective),
			strconv.FormatBool(row.AdjustmentApplied),
			adjPct,
			adjDollar,
			row.Category,
			row.Direction,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write CSV record for %d: %w", row.RecordID, err)
		}
	}

	return nil
}

// SaveResultToJSON saves a full analysis result to a JSON file with a
// metadata envelope
func SaveResultToJSON(result *AnalysisResult, outputPath string) error {
	if result == nil {
		return fmt.Errorf("no analysis result to save")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	output := map[string]interface{}{
		"metadata": map[string]interface{}{
			"generated_at": time.Now().Format(time.RFC3339),
			"buckets":      len(result.Series),
			"flags":        len(result.Flags),
			"comparables":  len(result.Adjustments),
		},
		"result": result,
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}

	return nil
}

// formatFloat formats a float64 value for CSV output with specified precision
func formatFloat(value float64, precision int) string {
	return strconv.FormatFloat(value, 'f', precision, 64)
}
