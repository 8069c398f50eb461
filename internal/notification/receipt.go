package notification

import (
	"bytes"
	"fmt"

	"github.com/rsnnmgdy/Furniture-Ecommerce-sub000/internal/domain"

	"github.com/go-pdf/fpdf"
)

// ReceiptRenderer turns an order into PDF receipt bytes. It is a pure
// transformation; a failure aborts only the notification it feeds.
type ReceiptRenderer interface {
	Render(order *domain.Order, user *domain.User) ([]byte, error)
}

type pdfReceiptRenderer struct{}

// NewReceiptRenderer creates the PDF receipt renderer.
func NewReceiptRenderer() ReceiptRenderer {
	return &pdfReceiptRenderer{}
}

// Render produces a one-page receipt with the frozen order prices.
func (r *pdfReceiptRenderer) Render(order *domain.Order, user *domain.User) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Order Receipt")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, fmt.Sprintf("Order: %s", order.ID))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Customer: %s %s (%s)", user.FirstName, user.LastName, user.Email))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Placed: %s", order.CreatedAt.Format("2006-01-02 15:04")))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(90, 7, "Item", "1", 0, "", false, 0, "")
	pdf.CellFormat(25, 7, "Qty", "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, "Unit Price", "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, "Subtotal", "1", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	for _, item := range order.Items {
		pdf.CellFormat(90, 7, item.Name, "1", 0, "", false, 0, "")
		pdf.CellFormat(25, 7, fmt.Sprintf("%d", item.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, fmt.Sprintf("%.2f", item.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, fmt.Sprintf("%.2f", item.UnitPrice*float64(item.Quantity)), "1", 1, "R", false, 0, "")
	}

	pdf.Ln(4)
	pdf.CellFormat(150, 6, "Items subtotal", "", 0, "R", false, 0, "")
	pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", order.ItemsSubtotal), "", 1, "R", false, 0, "")
	pdf.CellFormat(150, 6, "Tax", "", 0, "R", false, 0, "")
	pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", order.TaxPrice), "", 1, "R", false, 0, "")
	pdf.CellFormat(150, 6, "Shipping", "", 0, "R", false, 0, "")
	pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", order.ShippingPrice), "", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(150, 7, "Total", "", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, fmt.Sprintf("%.2f", order.TotalPrice), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: receipt rendering: %v", domain.ErrExternalService, err)
	}

	return buf.Bytes(), nil
}
