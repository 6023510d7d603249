// Command matrix-peek polls a running painter and prints the grid in the
// terminal, the way the microcontroller would see it.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/fkcurrie/led-matrix-painter/internal/bridge"
)

var (
	endpoint = flag.String("url", "http://localhost:7000/api/pixels_gs3", "Frame endpoint to poll")
	width    = flag.Int("width", 13, "Grid width")
	interval = flag.Duration("interval", 200*time.Millisecond, "Poll interval")
	once     = flag.Bool("once", false, "Print a single frame and exit")
)

var (
	onStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	offStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	frameStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func main() {
	flag.Parse()
	if *width <= 0 {
		log.Fatalf("invalid width: %d", *width)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	last := ""
	for {
		encoded, err := fetch(ctx, client, *endpoint)
		if err != nil {
			log.Printf("Failed to fetch frame: %v", err)
		} else if encoded != last {
			last = encoded
			fmt.Print("\033[H\033[2J")
			fmt.Println(renderGrid(bridge.Decode(encoded), *width))
		}

		if *once {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func fetch(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

func renderGrid(bits []int, width int) string {
	var rows []string
	for start := 0; start < len(bits); start += width {
		end := min(start+width, len(bits))
		var row strings.Builder
		for _, v := range bits[start:end] {
			if v != 0 {
				row.WriteString(onStyle.Render("● "))
			} else {
				row.WriteString(offStyle.Render("· "))
			}
		}
		rows = append(rows, row.String())
	}
	if len(rows) == 0 {
		rows = append(rows, offStyle.Render("(empty frame)"))
	}
	return frameStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
