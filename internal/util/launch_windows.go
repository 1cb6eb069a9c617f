//go:build windows

package util

import (
	"log/slog"
	"os"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	kernel32             = windows.NewLazySystemDLL("kernel32.dll")
	procGetConsoleWindow = kernel32.NewProc("GetConsoleWindow")
)

var shells = map[string]bool{
	"cmd.exe":             true,
	"powershell.exe":      true,
	"pwsh.exe":            true,
	"wt.exe":              true,
	"conhost.exe":         true,
	"windowsterminal.exe": true,
}

// StartedFromGUI reports whether the process was started from Explorer or
// without a console.
func StartedFromGUI() bool {
	hwnd, _, _ := procGetConsoleWindow.Call()
	parent := strings.ToLower(parentName())
	slog.Debug("launch parent", "parent", parent, "console", hwnd != 0)

	switch {
	case hwnd == 0:
		return true
	case shells[parent]:
		return false
	default:
		return parent == "explorer.exe"
	}
}

func parentName() string {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return ""
	}
	defer windows.CloseHandle(snap)

	type proc struct {
		parent uint32
		exe    string
	}
	procs := map[uint32]proc{}
	var pe windows.ProcessEntry32
	pe.Size = uint32(unsafe.Sizeof(pe))
	for err = windows.Process32First(snap, &pe); err == nil; err = windows.Process32Next(snap, &pe) {
		procs[pe.ProcessID] = proc{parent: pe.ParentProcessID, exe: windows.UTF16ToString(pe.ExeFile[:])}
	}

	self, ok := procs[uint32(os.Getpid())]
	if !ok || self.parent == 0 {
		return ""
	}
	return procs[self.parent].exe
}
