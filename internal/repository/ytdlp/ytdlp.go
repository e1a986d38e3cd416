package ytdlp

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yunojang/backend/internal/domain/usecase"
)

const progressPrefix = "ingest-progress "

// Client downloads remote videos by shelling out to yt-dlp. Video and audio
// tracks are fetched as separate parts and merged into a single mp4.
type Client struct {
	Binary string
	Format string
}

func NewClient() *Client {
	return &Client{
		Binary: "yt-dlp",
		Format: "bestvideo[ext=mp4]+bestaudio/best",
	}
}

// Download fetches sourceURL into destDir and returns the path of the merged
// output file. hook receives one sample per progress line yt-dlp prints.
func (c *Client) Download(ctx context.Context, sourceURL, destDir string, hook func(usecase.DownloadStatus)) (string, error) {
	args := []string{
		"--newline",
		"--no-playlist",
		"-f", c.Format,
		"--merge-output-format", "mp4",
		"-o", filepath.Join(destDir, "%(id)s.%(ext)s"),
		"--progress-template",
		"download:" + progressPrefix + "%(progress.status)s %(progress.downloaded_bytes)s %(progress.total_bytes,progress.total_bytes_estimate)s %(progress.eta)s",
		sourceURL,
	}

	cmd := exec.CommandContext(ctx, c.Binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("yt-dlp stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start yt-dlp: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, progressPrefix) {
			continue
		}
		if hook == nil {
			continue
		}
		if status, ok := parseProgressLine(strings.TrimPrefix(line, progressPrefix)); ok {
			hook(status)
		}
	}

	if err := cmd.Wait(); err != nil {
		return "", fmt.Errorf("yt-dlp: %w", err)
	}

	return mergedOutput(destDir)
}

// parseProgressLine decodes "<status> <downloaded> <total> <eta>" fields as
// emitted by the progress template. Missing numbers come through as "NA".
func parseProgressLine(line string) (usecase.DownloadStatus, bool) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return usecase.DownloadStatus{}, false
	}

	switch fields[0] {
	case "finished":
		return usecase.DownloadStatus{Finished: true}, true
	case "downloading":
		status := usecase.DownloadStatus{
			DownloadedBytes: parseBytes(fields[1]),
			TotalBytes:      parseBytes(fields[2]),
		}
		if eta, err := strconv.Atoi(fields[3]); err == nil {
			status.ETA = eta
		}
		return status, true
	default:
		return usecase.DownloadStatus{}, false
	}
}

func parseBytes(raw string) int64 {
	// yt-dlp reports float byte counts for estimates.
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return int64(value)
}

// mergedOutput locates the final file in the scratch directory. After the
// merge step only the output remains, but pick the largest entry in case a
// stray .part file survived.
func mergedOutput(destDir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(destDir, "*"))
	if err != nil {
		return "", fmt.Errorf("scan download dir: %w", err)
	}

	var best string
	var bestSize int64 = -1
	for _, match := range matches {
		if strings.HasSuffix(match, ".part") {
			continue
		}
		info, statErr := os.Stat(match)
		if statErr != nil || info.IsDir() {
			continue
		}
		if info.Size() > bestSize {
			best = match
			bestSize = info.Size()
		}
	}
	if best == "" {
		return "", fmt.Errorf("yt-dlp produced no output in %s", destDir)
	}
	return best, nil
}
