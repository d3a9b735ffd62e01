// Package logger provides structured logging for xpdflow using zerolog.
//
// It supports JSON and console output, level configuration, component-scoped
// loggers and a map-based field API shared by every package.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("mask")
//	log.Debug("mask computed", logger.Fields(logger.FieldFlagged, n, logger.FieldBins, bins))
package logger
