package pdf

import (
	"bytes"
	"context"
	"io"
	"strconv"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// StatementData carries preformatted display strings; amounts are
// formatted by the caller with FormatAmount so the renderer stays
// free of money math.
type StatementData struct {
	StudioName  string
	TrainerName string
	PeriodLabel string
	Status      string
	GeneratedAt string

	Items []StatementItem
	Skips []StatementSkip

	TotalEntry   string
	TotalTrainer string
}

type StatementItem struct {
	Date       string
	ClassName  string
	MemberName string
	Status     string
	EntryFee   string
	TrainerFee string
}

type StatementSkip struct {
	Date       string
	ClassName  string
	MemberName string
	Reason     string
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateStatement(ctx context.Context, data StatementData) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, data.StudioName, props.Text{
			Size:  16,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)
	m.AddRow(10,
		text.NewCol(12, "Trainer settlement statement", props.Text{
			Size:  12,
			Align: align.Left,
		}),
	)

	m.AddRow(22,
		col.New(6).Add(
			text.New("Trainer: "+data.TrainerName, props.Text{Top: 0}),
			text.New("Period: "+data.PeriodLabel, props.Text{Top: 5}),
			text.New("Status: "+data.Status, props.Text{Top: 10}),
			text.New("Generated: "+data.GeneratedAt, props.Text{Top: 15}),
		),
		col.New(6),
	)

	m.AddRow(8,
		text.NewCol(2, "Date", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Class", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Member", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(1, "Status", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(1, "Entry", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Trainer fee", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, item := range data.Items {
		m.AddRow(7,
			text.NewCol(2, item.Date, props.Text{Size: 8}),
			text.NewCol(3, item.ClassName, props.Text{Size: 8}),
			text.NewCol(3, item.MemberName, props.Text{Size: 8}),
			text.NewCol(1, item.Status, props.Text{Size: 8}),
			text.NewCol(1, item.EntryFee, props.Text{Size: 8, Align: align.Right}),
			text.NewCol(2, item.TrainerFee, props.Text{Size: 8, Align: align.Right}),
		)
	}

	m.AddRow(10,
		col.New(7),
		text.NewCol(3, "Total entry fees", props.Text{Size: 9, Top: 3}),
		text.NewCol(2, data.TotalEntry, props.Text{Size: 9, Align: align.Right, Top: 3}),
	)
	m.AddRow(10,
		col.New(7),
		text.NewCol(3, "Total trainer payout", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, data.TotalTrainer, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	if len(data.Skips) > 0 {
		m.AddRow(10,
			text.NewCol(12, "Sessions without pricing", props.Text{
				Size:  10,
				Style: fontstyle.Bold,
				Top:   3,
			}),
		)
		for _, skip := range data.Skips {
			m.AddRow(7,
				text.NewCol(2, skip.Date, props.Text{Size: 8}),
				text.NewCol(3, skip.ClassName, props.Text{Size: 8}),
				text.NewCol(4, skip.MemberName, props.Text{Size: 8}),
				text.NewCol(3, skip.Reason, props.Text{Size: 8}),
			)
		}
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}

// FormatAmount renders a forint amount with thousands separators, e.g.
// 12345 HUF becomes "12 345 HUF".
func FormatAmount(amount int64, currency string) string {
	digits := strconv.FormatInt(amount, 10)
	negative := false
	if len(digits) > 0 && digits[0] == '-' {
		negative = true
		digits = digits[1:]
	}

	var grouped []byte
	for i, d := range []byte(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped = append(grouped, ' ')
		}
		grouped = append(grouped, d)
	}

	out := string(grouped)
	if negative {
		out = "-" + out
	}
	if currency != "" {
		out += " " + currency
	}
	return out
}
