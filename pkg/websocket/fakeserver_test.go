package websocket

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/mselser95/kalshi-mm/pkg/types"
)

// fakeKalshi is a feed server that acknowledges subscriptions and answers
// each with a one-level snapshot.
type fakeKalshi struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	commands []types.Command
	nextSid  int64
	accepted int
}

func newFakeKalshi(t *testing.T) *fakeKalshi {
	t.Helper()

	f := &fakeKalshi{}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.close)
	return f
}

func (f *fakeKalshi) url() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func (f *fakeKalshi) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.accepted++
	f.mu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd types.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			continue
		}

		f.mu.Lock()
		f.commands = append(f.commands, cmd)
		f.nextSid++
		sid := f.nextSid
		f.mu.Unlock()

		if cmd.Cmd != "subscribe" {
			continue
		}

		f.write(conn, fmt.Sprintf(`{"id":%d,"type":"subscribed","msg":{"channel":"orderbook_delta","sid":%d}}`, cmd.ID, sid))
		for _, ticker := range cmd.Params.MarketTickers {
			f.write(conn, fmt.Sprintf(`{"type":"orderbook_snapshot","sid":%d,"seq":1,"msg":{"market_ticker":%q,"yes":[[45,100]],"no":[[50,80]]}}`, sid, ticker))
		}
	}
}

func (f *fakeKalshi) write(conn *websocket.Conn, frame string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

// broadcast sends frame on every live connection.
func (f *fakeKalshi) broadcast(frame string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		_ = c.WriteMessage(websocket.TextMessage, []byte(frame))
	}
}

// dropAll closes every server-side connection.
func (f *fakeKalshi) dropAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		_ = c.Close()
	}
	f.conns = nil
}

func (f *fakeKalshi) connections() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accepted
}

func (f *fakeKalshi) received() []types.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Command, len(f.commands))
	copy(out, f.commands)
	return out
}

// count returns how many cmd commands named ticker.
func (f *fakeKalshi) count(cmd, ticker string) int {
	n := 0
	for _, c := range f.received() {
		if c.Cmd != cmd {
			continue
		}
		for _, t := range c.Params.MarketTickers {
			if t == ticker {
				n++
			}
		}
	}
	return n
}

func (f *fakeKalshi) close() {
	f.dropAll()
	f.srv.Close()
}
