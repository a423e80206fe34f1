package report

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/tainamorais/clinica-agenda/internal/dates"
	"github.com/tainamorais/clinica-agenda/internal/finance"
)

var ErrGenerate = errors.New("failed to generate spreadsheet")

const (
	summarySheet      = "Resumo"
	appointmentsSheet = "Consultas"
)

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// FinanceXLSX renders the finance report as a workbook with a per-patient
// summary sheet and an appointment list sheet. It returns the file contents and
// a suggested file name.
func FinanceXLSX(r finance.Report, logger *zap.Logger) (*bytes.Buffer, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(summarySheet)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrGenerate, err)
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")
	if _, err := f.NewSheet(appointmentsSheet); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrGenerate, err)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	moneyFmt := "#,##0.00"
	moneyStyle, _ := f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFmt})

	// summary
	f.SetColWidth(summarySheet, "A", "A", 32)
	f.SetColWidth(summarySheet, "B", "G", 14)
	f.SetCellValue(summarySheet, "A1", fmt.Sprintf("Financeiro %s a %s (%s)", dates.FormatBR(r.From), dates.FormatBR(r.To), r.Status))

	headers := []string{"Paciente", "Consultas", "Pagas", "Pendentes", "Esperado", "Recebido", "Pendente"}
	for i, h := range headers {
		name, _ := excelize.CoordinatesToCellName(i+1, 3)
		f.SetCellValue(summarySheet, name, h)
	}
	f.SetCellStyle(summarySheet, "A3", "G3", headerStyle)

	row := 4
	for _, p := range r.PerPatient {
		f.SetCellValue(summarySheet, cell("A", row), p.PatientName)
		f.SetCellValue(summarySheet, cell("B", row), p.Count)
		f.SetCellValue(summarySheet, cell("C", row), p.PaidCount)
		f.SetCellValue(summarySheet, cell("D", row), p.PendingCount)
		f.SetCellValue(summarySheet, cell("E", row), p.Expected)
		f.SetCellValue(summarySheet, cell("F", row), p.Received)
		f.SetCellValue(summarySheet, cell("G", row), p.Pending)
		row++
	}
	f.SetCellValue(summarySheet, cell("A", row), "Total")
	f.SetCellValue(summarySheet, cell("B", row), r.Totals.Count)
	f.SetCellValue(summarySheet, cell("C", row), r.Totals.PaidCount)
	f.SetCellValue(summarySheet, cell("D", row), r.Totals.PendingCount)
	f.SetCellValue(summarySheet, cell("E", row), r.Totals.Expected)
	f.SetCellValue(summarySheet, cell("F", row), r.Totals.Received)
	f.SetCellValue(summarySheet, cell("G", row), r.Totals.Pending)
	f.SetCellStyle(summarySheet, "E4", cell("G", row), moneyStyle)

	// appointments
	f.SetColWidth(appointmentsSheet, "A", "B", 12)
	f.SetColWidth(appointmentsSheet, "C", "C", 32)
	f.SetColWidth(appointmentsSheet, "D", "H", 14)
	apptHeaders := []string{"Data", "Horário", "Paciente", "Tipo", "Valor", "Pago", "Pagador", "NF emitida"}
	for i, h := range apptHeaders {
		name, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(appointmentsSheet, name, h)
	}
	f.SetCellStyle(appointmentsSheet, "A1", "H1", headerStyle)

	row = 2
	for _, a := range r.Appointments {
		var name string
		var fee float64
		if a.Patient != nil {
			name, fee = a.Patient.Name, a.Patient.Fee
		}
		f.SetCellValue(appointmentsSheet, cell("A", row), dates.FormatBR(a.Date))
		f.SetCellValue(appointmentsSheet, cell("B", row), a.Time)
		f.SetCellValue(appointmentsSheet, cell("C", row), name)
		f.SetCellValue(appointmentsSheet, cell("D", row), a.Kind)
		f.SetCellValue(appointmentsSheet, cell("E", row), fee)
		f.SetCellValue(appointmentsSheet, cell("F", row), yesNo(a.Paid))
		f.SetCellValue(appointmentsSheet, cell("G", row), a.PayerName)
		f.SetCellValue(appointmentsSheet, cell("H", row), yesNo(a.InvoiceIssued))
		row++
	}
	if row > 2 {
		f.SetCellStyle(appointmentsSheet, "E2", cell("E", row-1), moneyStyle)
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		logger.Error("write xlsx failed", zap.Error(err))
		return nil, "", ErrGenerate
	}
	return buf, fmt.Sprintf("financeiro_%s_%s.xlsx", r.From, r.To), nil
}

func yesNo(v bool) string {
	if v {
		return "Sim"
	}
	return "Não"
}
