package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"
	"github.com/tsarna/aisbridge/pkg/aisbridge/config"
	"github.com/tsarna/aisbridge/pkg/aisbridge/engineio"
	"go.uber.org/zap"
)

// subscribeCmd represents the subscribe command
var subscribeCmd = &cobra.Command{
	Use:   "subscribe [websocket-url]",
	Short: "Print events served by a running bridge",
	Long: `Connect to a bridge's local websocket endpoint and print each event as
"name<TAB>payload". The URL defaults to ws://localhost:8080/.

With --jq, the payload is passed through a jq query instead; the event name
is available as $event. Each query result is printed on its own line.

Examples:
  aisbridge subscribe
  aisbridge subscribe ws://bridge.local:8080/
  aisbridge subscribe --jq '.[] | select(.speed > 10) | .mmsi'
  aisbridge subscribe --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSubscribe,
}

var (
	dialTimeout time.Duration
	jqQuery     string
	printAll    bool
)

func init() {
	rootCmd.AddCommand(subscribeCmd)

	subscribeCmd.Flags().DurationVar(&dialTimeout, "dial-timeout", 10*time.Second, "websocket dial timeout")
	subscribeCmd.Flags().StringVar(&jqQuery, "jq", "", "jq query applied to each event payload")
	subscribeCmd.Flags().BoolVar(&printAll, "all", false, "also print frames that are not events, verbatim")
}

func runSubscribe(cmd *cobra.Command, args []string) error {
	logCfg := config.Default().Log
	logCfg.Level = "warn"
	logger, closeLog, err := setupLogger(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer closeLog()
	defer logger.Sync()

	wsURL := "ws://localhost:8080/"
	if len(args) > 0 {
		wsURL = args[0]
	}

	printer, err := newFramePrinter(cmd.OutOrStdout(), jqQuery, printAll)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	conn, _, err := websocket.Dial(dialCtx, wsURL, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", wsURL, err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(-1)

	logger.Info("Connected", zap.String("url", wsURL))

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				conn.Close(websocket.StatusNormalClosure, "")
				return nil
			}
			if status := websocket.CloseStatus(err); status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				logger.Info("Bridge closed the connection", zap.Int("close_status", int(status)))
				return nil
			}
			return err
		}

		if msgType != websocket.MessageText {
			continue
		}

		if err := printer.Print(string(data)); err != nil {
			logger.Warn("Failed to print frame", zap.Error(err))
		}
	}
}

// framePrinter writes frames received from the bridge to out.
type framePrinter struct {
	out   io.Writer
	query *gojq.Code
	all   bool
}

func newFramePrinter(out io.Writer, query string, all bool) (*framePrinter, error) {
	p := &framePrinter{out: out, all: all}
	if query == "" {
		return p, nil
	}

	parsed, err := gojq.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("invalid jq query: %w", err)
	}

	p.query, err = gojq.Compile(parsed, gojq.WithVariables([]string{"$event"}))
	if err != nil {
		return nil, fmt.Errorf("invalid jq query: %w", err)
	}

	return p, nil
}

// Print writes one frame. Events print as "name<TAB>payload", where payload
// is the single argument or a JSON array of all arguments.
func (p *framePrinter) Print(raw string) error {
	frame := engineio.Classify(raw)
	if !frame.IsEvent() || frame.Err != nil {
		if p.all {
			_, err := fmt.Fprintln(p.out, raw)
			return err
		}
		return nil
	}

	payload := payloadJSON(frame.Payload)

	if p.query == nil {
		_, err := fmt.Fprintf(p.out, "%s\t%s\n", frame.Name, payload)
		return err
	}

	var input any
	if err := json.Unmarshal(payload, &input); err != nil {
		return err
	}

	iter := p.query.Run(input, frame.Name)
	for {
		v, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, isErr := v.(error); isErr {
			var haltErr *gojq.HaltError
			if errors.As(err, &haltErr) && haltErr.Value() == nil {
				return nil
			}
			return err
		}

		out, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(p.out, string(out)); err != nil {
			return err
		}
	}
}

func payloadJSON(payload []json.RawMessage) json.RawMessage {
	switch len(payload) {
	case 0:
		return json.RawMessage("null")
	case 1:
		return payload[0]
	default:
		out, _ := json.Marshal(payload)
		return out
	}
}
