package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/bankpull-dev/bankpull/internal/model"
)

// UOBParser parses UOB markup-table statement exports. The bank's "Excel"
// download is really an HTML table, so rows are walked as markup.
type UOBParser struct{}

const (
	uobSignature  = "Account Transaction History"
	uobDateFormat = "2 Jan 2006"

	uobColDate       = "Transaction Date"
	uobColDesc       = "Description"
	uobColWithdrawal = "Withdrawal"
	uobColDeposit    = "Deposit"

	// pendingClass marks a row whose transaction has not settled.
	pendingClass = "pending"
)

// Bank returns the parser name.
func (p *UOBParser) Bank() string { return "uob" }

// Parse reads a UOB HTML export and returns Transactions, oldest first.
func (p *UOBParser) Parse(raw []byte) ([]model.Transaction, error) {
	st, err := p.parseStatement(raw)
	if err != nil {
		return nil, err
	}
	return st.transactions, nil
}

// Reserialize renders the parsed rows as the CSV a delimited export would
// have contained, for the archive. Pending rows are excluded here but
// remain part of the transaction sequence.
func (p *UOBParser) Reserialize(raw []byte) ([]byte, error) {
	st, err := p.parseStatement(raw)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(st.header); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	for _, row := range st.rows {
		if row.pending {
			continue
		}
		rec := make([]string, len(st.header))
		copy(rec, row.cells)
		if err := cw.Write(rec); err != nil {
			return nil, fmt.Errorf("writing row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// tableRow is one <tr> flattened to cell text.
type tableRow struct {
	cells   []string
	pending bool
}

// uobStatement holds one parsed export: the resolved header, the data
// rows in source (newest-first) order, and the oldest-first transactions.
type uobStatement struct {
	header       []string
	rows         []tableRow
	transactions []model.Transaction
}

func (p *UOBParser) parseStatement(raw []byte) (*uobStatement, error) {
	if !bytes.Contains(raw, []byte(uobSignature)) {
		return nil, fmt.Errorf("%w: missing %q marker", ErrInvalidFormat, uobSignature)
	}

	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing uob markup: %w", err)
	}

	rows := collectRows(doc)

	headerIdx := -1
	for i, row := range rows {
		if containsCell(row.cells, uobColDate) && containsCell(row.cells, uobColDesc) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, fmt.Errorf("%w: header row not found", ErrInvalidFormat)
	}

	header := rows[headerIdx].cells
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, name := range []string{uobColDate, uobColDesc, uobColWithdrawal, uobColDeposit} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: missing %q column", ErrInvalidFormat, name)
		}
	}

	account := accountLabel("uob", string(raw))

	var data []tableRow
	for _, row := range rows[headerIdx+1:] {
		if isBlankRow(row.cells) {
			continue
		}
		data = append(data, row)
	}

	txns := make([]model.Transaction, 0, len(data))
	for i := len(data) - 1; i >= 0; i-- {
		row := data[i]

		date, err := time.ParseInLocation(uobDateFormat, cell(row.cells, cols[uobColDate]), sgt)
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing date %q: %w", i+1, cell(row.cells, cols[uobColDate]), err)
		}

		withdrawal := SafeAmount(cell(row.cells, cols[uobColWithdrawal]))
		deposit := SafeAmount(cell(row.cells, cols[uobColDeposit]))

		txn := model.Transaction{
			Account:     account,
			Date:        date,
			Description: collapseSpaces(cell(row.cells, cols[uobColDesc])),
			IsPending:   row.pending,
		}
		// Withdrawal takes precedence when both sides carry an amount.
		if withdrawal.IsPositive() {
			txn.AbsoluteAmount = withdrawal
			txn.IsDebit = true
		} else {
			txn.AbsoluteAmount = deposit
		}

		txns = append(txns, txn)
	}

	return &uobStatement{header: header, rows: data, transactions: txns}, nil
}

// collectRows walks the node tree and flattens every <tr> into cell text.
func collectRows(n *html.Node) []tableRow {
	var rows []tableRow
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			rows = append(rows, tableRow{
				cells:   rowCells(n),
				pending: hasClass(n, pendingClass),
			})
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return rows
}

// rowCells returns the collapsed text of each td/th in a row.
func rowCells(tr *html.Node) []string {
	var cells []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
			cells = append(cells, collapseSpaces(nodeText(c)))
		}
	}
	return cells
}

// nodeText concatenates all text nodes beneath n.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func containsCell(cells []string, name string) bool {
	for _, c := range cells {
		if c == name {
			return true
		}
	}
	return false
}
