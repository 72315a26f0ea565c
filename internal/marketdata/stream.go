package marketdata

import (
	"context"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"main/internal/model"
)

const (
	defaultBarWidth = 5 * time.Minute
	maxStreamBars   = 100
	subscribeReqID  = 1
)

// Tick is one streamed price update.
type Tick struct {
	Epic      string  `json:"epic"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}

type subscribeRequest struct {
	Method string   `json:"method"`
	Epics  []string `json:"epics"`
	Fields []string `json:"fields"`
	ID     int64    `json:"id"`
}

type subscribeResponse struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

// Stream buffers broker price ticks from the push endpoint and rolls them
// into fixed-width OHLCV bars on wall-clock boundaries. It backs the
// cache's shortest-timeframe fallback.
type Stream struct {
	wss      *ws.WebSocket
	barWidth time.Duration
	now      func() time.Time

	mu    sync.Mutex
	ticks map[string][]Tick
	bars  map[string][]model.Candle
}

// NewStream creates a stream client against the push endpoint.
func NewStream(ctx context.Context, streamURL string) *Stream {
	return &Stream{
		wss:      ws.New(ctx, streamURL),
		barWidth: defaultBarWidth,
		now:      time.Now,
		ticks:    make(map[string][]Tick),
		bars:     make(map[string][]model.Candle),
	}
}

// Start opens the websocket connection.
func (s *Stream) Start(ctx context.Context) error {
	if err := s.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}
	return nil
}

// Close tears the connection down.
func (s *Stream) Close() {
	s.wss.Close()
}

// Subscribe requests tick updates for the given instruments and waits for
// the acknowledgment.
func (s *Stream) Subscribe(ctx context.Context, epics []string) error {
	appendIntoRegister := true
	if err := s.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, client *ws.WebSocket) error {
			payload := subscribeRequest{
				Method: "SUBSCRIBE",
				Epics:  epics,
				Fields: []string{"LTP"},
				ID:     subscribeReqID,
			}
			if err := client.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}
			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			var resp subscribeResponse
			if err := m.Unmarshal(&resp); err != nil || resp.ID != subscribeReqID {
				return false, nil
			}
			if resp.Result != nil {
				return false, errors.Errorf("subscribe rejected, err: %+v", resp.Result)
			}
			return true, nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}
	return nil
}

// Observe consumes tick messages into the per-instrument buffers until
// the context ends.
func (s *Stream) Observe(ctx context.Context) (unsubscribe func()) {
	ch, cancel := s.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				tick, ok := ws.ReadMessage[Tick](m)
				if !ok || tick.Epic == "" {
					continue
				}
				s.mu.Lock()
				s.ticks[tick.Epic] = append(s.ticks[tick.Epic], tick)
				s.mu.Unlock()
			}
		}
	}()

	return cancel
}

// RunAggregator rolls buffered ticks into bars, waking on every bar-width
// wall-clock boundary. Blocks until the context ends.
func (s *Stream) RunAggregator(ctx context.Context) {
	for {
		now := s.now()
		boundary := now.Truncate(s.barWidth).Add(s.barWidth)

		select {
		case <-ctx.Done():
			return
		case <-time.After(boundary.Sub(now)):
			s.flush(boundary)
		}
	}
}

// flush drains every tick buffer into one bar stamped at the boundary.
func (s *Stream) flush(boundary time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for epic, ticks := range s.ticks {
		s.ticks[epic] = nil
		if len(ticks) == 0 {
			continue
		}
		bar := aggregate(ticks, boundary)
		bars := append(s.bars[epic], bar)
		if len(bars) > maxStreamBars {
			bars = bars[len(bars)-maxStreamBars:]
		}
		s.bars[epic] = bars
		logs.Infof("aggregated stream bar %s close=%.2f ticks=%d", epic, bar.Close, int(bar.Volume))
	}
}

// aggregate builds one OHLCV bar from a tick run. Volume counts ticks.
func aggregate(ticks []Tick, boundary time.Time) model.Candle {
	bar := model.Candle{
		Timestamp: boundary,
		Open:      ticks[0].Price,
		High:      ticks[0].Price,
		Low:       ticks[0].Price,
		Close:     ticks[len(ticks)-1].Price,
		Volume:    float64(len(ticks)),
	}
	for _, t := range ticks {
		if t.Price > bar.High {
			bar.High = t.Price
		}
		if t.Price < bar.Low {
			bar.Low = t.Price
		}
	}
	return bar
}

// Bars returns the aggregated bars collected so far for the instrument,
// oldest first.
func (s *Stream) Bars(epic string) []model.Candle {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Candle, len(s.bars[epic]))
	copy(out, s.bars[epic])
	return out
}
