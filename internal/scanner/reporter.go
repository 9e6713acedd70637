package scanner

// ProgressReporter receives scan progress events. Implementations decide how
// to surface them; the scanner itself never prints. Per-file skip
// diagnostics flow through OnFileSkipped, so a quiet reporter silences them
// without touching scan behavior.
type ProgressReporter interface {
	OnDiscoveryComplete(totalFiles int)
	OnFileScanned(relPath string)
	OnFileSkipped(relPath, reason string)
	OnScanComplete(stats Stats)
}

// NoOpReporter discards all progress events.
type NoOpReporter struct{}

func (NoOpReporter) OnDiscoveryComplete(int)      {}
func (NoOpReporter) OnFileScanned(string)         {}
func (NoOpReporter) OnFileSkipped(string, string) {}
func (NoOpReporter) OnScanComplete(Stats)         {}
