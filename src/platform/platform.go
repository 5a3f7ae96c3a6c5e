// Package platform implements the capability probe: detecting
// emulator/sandbox/restricted-archive environments where the desktop 7z CLI
// provider may be unavailable or unreliable, so a host can fall back to
// archive.MockProvider or surface a clear error instead of a confusing I/O
// failure.
package platform

import (
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Capabilities summarizes what the current process can do with respect to
// archive I/O.
type Capabilities struct {
	OS                 string
	Arch               string
	SevenZipAvailable  bool
	SevenZipPath       string
	Sandboxed          bool
	Emulated           bool
	Containerized      bool
	RecommendMockOnly  bool
}

// Probe inspects the current process/host and returns its Capabilities.
func Probe() Capabilities {
	c := Capabilities{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}
	if path, err := exec.LookPath("7z"); err == nil {
		c.SevenZipAvailable = true
		c.SevenZipPath = path
	} else if path, err := exec.LookPath("7za"); err == nil {
		c.SevenZipAvailable = true
		c.SevenZipPath = path
	}

	c.Containerized = isContainerized()
	c.Sandboxed = isSandboxed()
	c.Emulated = isEmulated()
	c.RecommendMockOnly = !c.SevenZipAvailable || c.Sandboxed

	return c
}

// isContainerized reports common signals of running inside a Linux
// container (Docker/Kubernetes), where a 7z binary is often simply not
// installed in a minimal image.
func isContainerized() bool {
	if runtime.GOOS != "linux" {
		return false
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	if data, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		s := string(data)
		return strings.Contains(s, "docker") || strings.Contains(s, "kubepods") || strings.Contains(s, "containerd")
	}
	return false
}

// isSandboxed reports whether the process appears to be running under an
// app-store style sandbox (macOS) that restricts subprocess execution, the
// environment where shelling out to `7z` is most likely to fail silently.
func isSandboxed() bool {
	if runtime.GOOS == "darwin" {
		if _, ok := os.LookupEnv("APP_SANDBOX_CONTAINER_ID"); ok {
			return true
		}
	}
	return false
}

// isEmulated reports whether the binary appears to be running under
// translation (e.g. Rosetta 2 on Apple Silicon, QEMU user-mode), a
// condition under which subprocess timing assumptions in the cloud-retry
// policy may not hold.
func isEmulated() bool {
	if runtime.GOOS == "darwin" && runtime.GOARCH == "amd64" {
		if v, ok := os.LookupEnv("PROCESSOR_ARCHITECHTURE_ROSETTA"); ok && v != "" {
			return true
		}
	}
	if _, ok := os.LookupEnv("QEMU_EMULATING"); ok {
		return true
	}
	return false
}
