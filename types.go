package sdk

import "path/filepath"

// PluginID is a process-unique, monotonically increasing identifier assigned
// by a manager at load time. It stays stable for the lifetime of the loaded
// plugin and is never reassigned to a different live plugin within one
// manager's lifetime, even after unload.
type PluginID uint64

// SourceKind identifies where plugin code originates.
type SourceKind uint8

const (
	// SourceText is inline plugin source code.
	SourceText SourceKind = iota
	// SourceFile is a file-system path to plugin code.
	SourceFile
	// SourceBytes is a raw byte buffer of plugin code.
	SourceBytes
)

// String returns the lowercase name of the source kind.
func (k SourceKind) String() string {
	switch k {
	case SourceText:
		return "text"
	case SourceFile:
		return "file"
	case SourceBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// PluginSource describes where plugin code comes from. It carries no
// identity of its own and is consumed once by a Runtime's Load operation.
type PluginSource struct {
	kind SourceKind
	text string
	path string
	data []byte
}

// TextSource wraps inline plugin source code.
func TextSource(code string) PluginSource {
	return PluginSource{kind: SourceText, text: code}
}

// FileSource wraps a file-system path to plugin code.
func FileSource(path string) PluginSource {
	return PluginSource{kind: SourceFile, path: path}
}

// BytesSource wraps a raw byte buffer of plugin code.
func BytesSource(data []byte) PluginSource {
	return PluginSource{kind: SourceBytes, data: data}
}

// Kind returns the source kind.
func (s PluginSource) Kind() SourceKind { return s.kind }

// Text returns the inline source code for SourceText sources.
func (s PluginSource) Text() string { return s.text }

// Path returns the file path for SourceFile sources.
func (s PluginSource) Path() string { return s.path }

// Data returns the raw buffer for SourceBytes sources.
func (s PluginSource) Data() []byte { return s.data }

// Ext returns the file extension for SourceFile sources, including the
// leading dot, or "" for other kinds. Runtimes use it for cheap
// compatibility sniffing.
func (s PluginSource) Ext() string {
	if s.kind != SourceFile {
		return ""
	}
	return filepath.Ext(s.path)
}
