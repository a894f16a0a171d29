package swarm

import (
	"bufio"
	"io"
	"time"
)

// Drive copies src to dst one line at a time, pausing between lines the way
// a person (or an expect script) would type into the client.
func Drive(dst io.Writer, src io.Reader, interval time.Duration) error {
	reader := bufio.NewReader(src)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			if _, werr := io.WriteString(dst, line); werr != nil {
				return werr
			}
			if interval > 0 {
				time.Sleep(interval)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
