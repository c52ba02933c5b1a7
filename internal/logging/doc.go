// Package logging provides the leveled logger used across scrubthumbs.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the process
//
// The initial level comes from the DEBUG or LOG_LEVEL environment variables
// and can be replaced at runtime with SetLevel once configuration is loaded.
// Subsystem returns a logger that tags every line with a component name,
// e.g. "[thumbcache]" or "[session]".
package logging
