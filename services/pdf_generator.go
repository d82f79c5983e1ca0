package services

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/omegahouses/invoice-api/models"
)

// PDFGenerator renders an assembled invoice record to an A4 PDF. The result
// is returned as bytes (handlers base64-encode it for transport) and also
// written under invoiceDir/<year>/<city>/ for the manager's archive.
type PDFGenerator struct {
	invoiceDir string
	portalURL  string
}

func NewPDFGenerator(invoiceDir, portalURL string) *PDFGenerator {
	return &PDFGenerator{invoiceDir: invoiceDir, portalURL: portalURL}
}

type invoiceLabels struct {
	notOfficial    string
	typeHeader     string
	previousValue  string
	currentValue   string
	consumption    string
	sum            string
	item           string
	amount         string
	meterNames     map[string]string
	oldMeterNames  map[string]string
	rent           string
	cleaning       string
	maintenanceFee string
	totalSum       string
	scanToSubmit   string
}

func labelsFor(language string) invoiceLabels {
	if language == "h" {
		return invoiceLabels{
			notOfficial:   "Nem hivatalos számla!",
			typeHeader:    "Típus",
			previousValue: "Előző érték",
			currentValue:  "Jelenlegi érték",
			consumption:   "Fogyasztás",
			sum:           "Összeg",
			item:          "Tétel",
			amount:        "Összeg",
			meterNames: map[string]string{
				"gas": "Gáz", "electricity": "Villany", "water": "Víz", "heating": "Fűtés",
			},
			oldMeterNames: map[string]string{
				"gas":         "Fogyasztás a korábbi gázóra alapján",
				"electricity": "Fogyasztás a korábbi villanyóra alapján",
				"water":       "Fogyasztás a korábbi vízóra alapján",
				"heating":     "Fogyasztás a korábbi fűtés mérő alapján",
			},
			rent:           "Bérleti díj",
			cleaning:       "Takarítás",
			maintenanceFee: "Közös költség",
			totalSum:       "Végösszeg: ",
			scanToSubmit:   "Mérőállás diktálás:",
		}
	}
	return invoiceLabels{
		notOfficial:   "Not an official invoice!",
		typeHeader:    "Type",
		previousValue: "Previous value",
		currentValue:  "Current value",
		consumption:   "Consumption",
		sum:           "Sum",
		item:          "Item",
		amount:        "Amount",
		meterNames: map[string]string{
			"gas": "Gas", "electricity": "Electricity", "water": "Water", "heating": "Heating",
		},
		oldMeterNames: map[string]string{
			"gas":         "Gas consumption based on previous gas meter",
			"electricity": "Electricity consumption based on previous electricity meter",
			"water":       "Water consumption based on previous water meter",
			"heating":     "Consumption based on previous heating meter",
		},
		rent:           "Rent",
		cleaning:       "Cleaning",
		maintenanceFee: "Maintenance fee",
		totalSum:       "Total Sum: ",
		scanToSubmit:   "Submit your readings:",
	}
}

// meterOrder keeps utility rows in a stable order on the invoice.
var meterOrder = []string{"gas", "electricity", "water", "heating"}

func (pg *PDFGenerator) GenerateInvoicePDF(inv *models.InvoiceRecord) ([]byte, error) {
	labels := labelsFor(inv.Language)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	// Address header, centered
	pdf.SetFont("Arial", "B", 16)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 10, tr(inv.ApartmentAddress), "", 0, "C", false, 0, "")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 11)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 6, tr(labels.notOfficial), "", 0, "C", false, 0, "")
	pdf.Ln(14)

	// Meter table
	pdf.SetFillColor(249, 249, 249)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Arial", "B", 10)
	colWidths := []float64{40, 35, 35, 35, 35}
	headers := []string{labels.typeHeader, labels.previousValue, labels.currentValue, labels.consumption, labels.sum}
	for i, h := range headers {
		pdf.CellFormat(colWidths[i], 8, tr(h), "B", 0, "L", true, 0, "")
	}
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	for _, meter := range meterOrder {
		line, ok := inv.Lines[meter]
		if !ok {
			continue
		}
		if line.OldMeterConsumption != 0 {
			pdf.SetFont("Arial", "", 8)
			pdf.SetTextColor(100, 100, 100)
			pdf.CellFormat(145, 5, tr(labels.oldMeterNames[meter]), "", 0, "L", false, 0, "")
			pdf.CellFormat(35, 5, formatNumber(line.OldMeterConsumption), "", 0, "R", false, 0, "")
			pdf.Ln(5)
			pdf.SetFont("Arial", "", 10)
			pdf.SetTextColor(0, 0, 0)
		}
		pdf.CellFormat(colWidths[0], 6, tr(labels.meterNames[meter]), "", 0, "L", false, 0, "")
		pdf.CellFormat(colWidths[1], 6, formatNumber(line.PreviousValue), "", 0, "R", false, 0, "")
		pdf.CellFormat(colWidths[2], 6, formatNumber(line.CurrentValue), "", 0, "R", false, 0, "")
		pdf.CellFormat(colWidths[3], 6, formatNumber(line.Consumption), "", 0, "R", false, 0, "")
		pdf.CellFormat(colWidths[4], 6, formatNumber(line.Cost)+" HUF", "", 0, "R", false, 0, "")
		pdf.Ln(6)
	}

	pdf.Ln(8)

	// Flat charges table
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(130, 8, tr(labels.item), "B", 0, "L", true, 0, "")
	pdf.CellFormat(50, 8, tr(labels.amount), "B", 0, "R", true, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	writeCharge := func(name string, amount int) {
		pdf.CellFormat(130, 6, tr(name), "", 0, "L", false, 0, "")
		pdf.CellFormat(50, 6, formatNumber(amount)+" HUF", "", 0, "R", false, 0, "")
		pdf.Ln(6)
	}
	writeCharge(labels.rent, inv.Rent)
	if inv.Cleaning != 0 {
		writeCharge(labels.cleaning, inv.Cleaning)
	}
	if inv.MaintenanceFee != 0 {
		writeCharge(labels.maintenanceFee, inv.MaintenanceFee)
	}
	if inv.OtherSum != 0 {
		writeCharge(inv.OtherText, inv.OtherSum)
	}

	// Total, right aligned
	pdf.Ln(10)
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr(labels.totalSum)+formatNumber(inv.TotalSum)+" HUF", "", 0, "R", false, 0, "")
	pdf.Ln(16)

	// QR code pointing at the tenant portal
	if pg.portalURL != "" {
		png, err := qrcode.Encode(pg.portalURL, qrcode.Medium, 256)
		if err != nil {
			log.Printf("Failed to generate portal QR code: %v", err)
		} else {
			opts := gofpdf.ImageOptions{ImageType: "PNG"}
			pdf.RegisterImageOptionsReader("portal-qr", opts, bytes.NewReader(png))
			pdf.SetFont("Arial", "", 9)
			pdf.SetTextColor(100, 100, 100)
			pdf.CellFormat(0, 5, tr(labels.scanToSubmit)+" "+pg.portalURL, "", 0, "L", false, 0, "")
			pdf.ImageOptions("portal-qr", 15, pdf.GetY()+7, 30, 30, false, opts, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %v", err)
	}

	if err := pg.archive(inv, buf.Bytes()); err != nil {
		// The caller still gets the bytes; the archive copy is best-effort.
		log.Printf("Failed to archive invoice PDF: %v", err)
	}

	return buf.Bytes(), nil
}

// archive writes the PDF under invoiceDir/<year>/<city>/.
func (pg *PDFGenerator) archive(inv *models.InvoiceRecord, data []byte) error {
	city := inv.ApartmentAddress
	if idx := strings.Index(city, ","); idx > 0 {
		city = city[:idx]
	}

	dir := filepath.Join(pg.invoiceDir, strconv.Itoa(time.Now().Year()), city)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	filename := fmt.Sprintf("Rent_%s_%s.pdf", inv.ApartmentAddress, time.Now().Format("2006-01-02"))
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}

	log.Printf("Archived invoice PDF: %s", path)
	return nil
}

// formatNumber renders an integer with spaces as thousand separators.
func formatNumber(n int) string {
	s := strconv.Itoa(n)
	negative := strings.HasPrefix(s, "-")
	if negative {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, " ")
	if negative {
		out = "-" + out
	}
	return out
}
