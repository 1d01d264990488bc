//go:build linux

package relay

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// logListenBacklog logs the kernel's listen backlog limit
func logListenBacklog(addr string) {
	somaxconn := 0
	if data, err := os.ReadFile("/proc/sys/net/core/somaxconn"); err == nil {
		somaxconn, _ = strconv.Atoi(strings.TrimSpace(string(data)))
	}

	log.Info().Str("addr", addr).Int("somaxconn", somaxconn).Msg("relay listening")
	if somaxconn > 0 && somaxconn < 1024 {
		log.Warn().Int("somaxconn", somaxconn).Msg("net.core.somaxconn may be too low for bursts of reconnecting clients")
	}
}

// monitorListenOverflows periodically checks for listen queue overflows
func (s *Server) monitorListenOverflows() {
	defer s.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	lastOverflows := getListenOverflows()
	for {
		select {
		case <-ticker.C:
			overflows := getListenOverflows()
			if overflows > lastOverflows {
				log.Warn().Uint64("rejected", overflows-lastOverflows).Uint64("total", overflows).Msg("connections rejected due to listen backlog overflow")
			}
			lastOverflows = overflows

		case <-s.shutdown:
			return
		}
	}
}

// getListenOverflows reads the ListenOverflows counter from /proc/net/netstat
func getListenOverflows() uint64 {
	file, err := os.Open("/proc/net/netstat")
	if err != nil {
		return 0
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var headers, values []string
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "TcpExt:") {
			continue
		}
		fields := strings.Fields(line)[1:]
		if headers == nil {
			headers = fields
		} else {
			values = fields
			break
		}
	}

	for i, header := range headers {
		if header == "ListenOverflows" && i < len(values) {
			n, _ := strconv.ParseUint(values[i], 10, 64)
			return n
		}
	}
	return 0
}
