package parser

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUOBParser_Parse(t *testing.T) {
	data, err := os.ReadFile("../../testdata/uob_history.html")
	require.NoError(t, err)

	p := &UOBParser{}
	txns, err := p.Parse(data)
	require.NoError(t, err)
	require.Len(t, txns, 4)

	// Oldest first, including the pending row.
	assert.Equal(t, 10, txns[0].Date.Day())
	assert.Equal(t, "FAST TRANSFER FROM JOHN", txns[0].Description)
	assert.Equal(t, "250.00", txns[0].AbsoluteAmount.StringFixed(2))
	assert.False(t, txns[0].IsDebit)

	// Same-day pair keeps reversed source order.
	assert.Equal(t, "INTEREST CREDIT", txns[1].Description)
	assert.Equal(t, "GIRO SP SERVICES", txns[2].Description)
	assert.True(t, txns[2].IsDebit)
	assert.Equal(t, "120.00", txns[2].AbsoluteAmount.StringFixed(2))

	assert.Equal(t, 15, txns[3].Date.Day())
	assert.Equal(t, "GRAB *RIDE", txns[3].Description)
	assert.True(t, txns[3].IsPending)
	assert.True(t, txns[3].IsDebit)

	for _, txn := range txns {
		assert.Equal(t, "uob-3210", txn.Account)
	}
}

// Pending rows stay in the transaction sequence but are left out of the
// archived CSV rendering.
func TestUOBParser_ReserializeExcludesPending(t *testing.T) {
	data, err := os.ReadFile("../../testdata/uob_history.html")
	require.NoError(t, err)

	p := &UOBParser{}
	out, err := p.Reserialize(data)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Transaction Date,Description,Withdrawal,Deposit", lines[0])
	assert.Equal(t, "14 Jan 2025,GIRO SP SERVICES,120.00,", lines[1])
	assert.Equal(t, "14 Jan 2025,INTEREST CREDIT,,3.15", lines[2])
	assert.Equal(t, "10 Jan 2025,FAST TRANSFER FROM JOHN,,250.00", lines[3])
	assert.NotContains(t, string(out), "GRAB")
}

func TestUOBParser_MissingSignature(t *testing.T) {
	p := &UOBParser{}
	_, err := p.Parse([]byte("<html><body><table></table></body></html>"))
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestUOBParser_MissingHeader(t *testing.T) {
	raw := "<html><body><table>" +
		"<tr><td>Account Transaction History</td></tr>" +
		"</table></body></html>"
	p := &UOBParser{}
	_, err := p.Parse([]byte(raw))
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestUOBParser_BadDate(t *testing.T) {
	raw := "<html><body><table>" +
		"<tr><td>Account Transaction History 987-654-321-0</td></tr>" +
		"<tr><td>Transaction Date</td><td>Description</td><td>Withdrawal</td><td>Deposit</td></tr>" +
		"<tr><td>NOTADATE</td><td>desc</td><td>5.00</td><td></td></tr>" +
		"</table></body></html>"
	p := &UOBParser{}
	_, err := p.Parse([]byte(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing date")
}
