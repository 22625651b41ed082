package polaris

// Shutdown stops all workers, joins them, and stops the config
// hot-reload watcher if one was started via InitFromFile (§6
// "shutdown() - stops all workers, joins, releases all entries").
// Metric and status-table entries are released by normal GC once no
// further calls reference this Engine; there is no separate pool to
// free.
func (e *Engine) Shutdown() {
	e.group.Shutdown()
	if e.reloader != nil {
		e.reloader.Stop()
	}
}
