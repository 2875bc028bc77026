package invoice

import (
	"bytes"
	"fmt"
	"html/template"
	"math"

	"github.com/sciencedream/jukustream/app/models"
)

// PayoutRate is the revenue share paid out to a cram school for sales
// attributed to it.
const PayoutRate = 0.3

// PayoutFor computes the rounded payout for a revenue total in the smallest
// currency unit.
func PayoutFor(total int64) int64 {
	return int64(math.Round(float64(total) * PayoutRate))
}

// Invoice is one month's payout statement for a cram school.
type Invoice struct {
	JukuName  string
	JukuCode  string
	Year      int
	Month     int
	SaleCount int64
	Total     int64
	Payout    int64
}

// Build assembles an invoice from the month's aggregated sales.
func Build(juku *models.Juku, year, month int, saleCount, total int64) Invoice {
	return Invoice{
		JukuName:  juku.Name,
		JukuCode:  juku.Code,
		Year:      year,
		Month:     month,
		SaleCount: saleCount,
		Total:     total,
		Payout:    PayoutFor(total),
	}
}

// Subject returns the email subject line for the invoice.
func (inv Invoice) Subject() string {
	return fmt.Sprintf("Payout statement %04d-%02d - %s", inv.Year, inv.Month, inv.JukuName)
}

var invoiceTemplate = template.Must(template.New("invoice").Parse(`<html>
<body>
<h2>Payout statement {{printf "%04d-%02d" .Year .Month}}</h2>
<p>{{.JukuName}} ({{.JukuCode}})</p>
<table border="1" cellpadding="6" cellspacing="0">
  <tr><td>Sales</td><td>{{.SaleCount}}</td></tr>
  <tr><td>Revenue</td><td>{{.Total}}</td></tr>
  <tr><td>Payout (30%)</td><td><strong>{{.Payout}}</strong></td></tr>
</table>
<p>The payout will be transferred to your registered account.</p>
</body>
</html>`))

// RenderHTML renders the invoice email body.
func (inv Invoice) RenderHTML() (string, error) {
	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, inv); err != nil {
		return "", err
	}
	return buf.String(), nil
}
