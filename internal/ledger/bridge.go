package ledger

import (
	"bufio"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"
)

//go:embed worker.js
var workerScript []byte

// The ledger runtime only ships as a dynamic module for another runtime,
// so it runs in an isolated worker process and requests cross a
// line-oriented JSON channel instead of being linked in.

// ConnectParams configures the worker's ledger session.
type ConnectParams struct {
	DataDir   string `json:"dataDir"`
	ServerURL string `json:"serverURL"`
	Password  string `json:"password"`
	SyncID    string `json:"syncID"`
}

// request is one outgoing line on the channel.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      int    `json:"id,omitempty"`
}

// rpcError is the error half of a worker response.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// response is one incoming line, result left raw for typed decoding.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      int             `json:"id"`
}

// callTimeout bounds a single worker round trip. Imports against a slow
// sync server can take a while.
const callTimeout = 120 * time.Second

// Bridge manages the ledger worker subprocess and implements Client over
// its line-oriented request/response channel.
type Bridge struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	reader  *bufio.Reader
	mu      sync.Mutex
	nextID  int
	pending map[int]chan *response
	tmpDir  string
	done    chan struct{}
}

// NewBridge starts the ledger worker subprocess and opens the session.
// The embedded worker.js is written to a temp directory and run via node.
func NewBridge(params ConnectParams) (*Bridge, error) {
	tmpDir, err := os.MkdirTemp("", "bankpull-worker-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}

	workerPath := filepath.Join(tmpDir, "worker.js")
	if err := os.WriteFile(workerPath, workerScript, 0o644); err != nil {
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("writing worker.js: %w", err)
	}

	cmd := exec.Command("node", workerPath)
	cmd.Dir = tmpDir
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("start worker: %w", err)
	}

	b := &Bridge{
		cmd:     cmd,
		stdin:   stdin,
		reader:  bufio.NewReader(stdout),
		pending: make(map[int]chan *response),
		tmpDir:  tmpDir,
		done:    make(chan struct{}),
	}
	go b.readLoop()

	if err := b.call("init", params, nil); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("opening ledger session: %w", err)
	}
	return b, nil
}

// Accounts returns the ledger's current account list.
func (b *Bridge) Accounts() ([]Account, error) {
	var accounts []Account
	if err := b.call("accounts", nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// ImportTransactions submits one account's records. The worker relies on
// the ledger's own reconciliation to keep repeated runs idempotent.
func (b *Bridge) ImportTransactions(accountID string, records []Record) (ImportResult, error) {
	params := map[string]any{
		"accountID":    accountID,
		"transactions": records,
	}
	var result ImportResult
	if err := b.call("importTransactions", params, &result); err != nil {
		return ImportResult{}, err
	}
	return result, nil
}

// Close sends the shutdown notification, waits for the worker to exit,
// and cleans up.
func (b *Bridge) Close() error {
	_ = b.send(request{JSONRPC: "2.0", Method: "shutdown"})
	err := b.cmd.Wait()
	os.RemoveAll(b.tmpDir)
	return err
}

// call performs one round trip and decodes the result into out.
func (b *Bridge) call(method string, params any, out any) error {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	ch := make(chan *response, 1)
	b.pending[id] = ch
	b.mu.Unlock()

	if err := b.send(request{JSONRPC: "2.0", Method: method, Params: params, ID: id}); err != nil {
		return err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return fmt.Errorf("ledger worker: %s", resp.Error.Message)
		}
		if out == nil || resp.Result == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("decoding %s result: %w", method, err)
		}
		return nil
	case <-b.done:
		b.abandon(id)
		return errors.New("ledger worker exited unexpectedly")
	case <-time.After(callTimeout):
		b.abandon(id)
		return fmt.Errorf("%s timed out after %s", method, callTimeout)
	}
}

// abandon drops a pending request so a late response cannot land in a
// channel nobody reads and the pending map cannot grow without bound.
func (b *Bridge) abandon(id int) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

func (b *Bridge) send(msg request) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	b.mu.Lock()
	_, err = fmt.Fprintf(b.stdin, "%s\n", data)
	b.mu.Unlock()
	return err
}

func (b *Bridge) readLoop() {
	defer close(b.done)
	for {
		line, err := b.reader.ReadString('\n')
		if err != nil {
			return
		}

		var resp response
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			continue
		}

		b.mu.Lock()
		ch, ok := b.pending[resp.ID]
		if ok {
			delete(b.pending, resp.ID)
		}
		b.mu.Unlock()
		if ok {
			ch <- &resp
		}
	}
}
