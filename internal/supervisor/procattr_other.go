//go:build !unix

package supervisor

import "os/exec"

// setProcessGroup falls back to killing the direct child only.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return cmd.Process.Kill()
	}
}
