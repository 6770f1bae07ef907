//go:build darwin

package helpers

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// getProcessRSSMB shells out to ps for the resident set size.
func getProcessRSSMB() int {
	cmd := exec.Command("ps", "-o", "rss=", "-p", fmt.Sprintf("%d", os.Getpid()))
	out, err := cmd.Output()
	if err != nil {
		return 0
	}

	kb, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0
	}
	return kb / 1024
}
