// Package compiler drives the translation of a parsed Triangle program into
// TAM code.
//
// Pipeline: tree → Check → Optimize → Generate → Thread/Combine → Resolve
package compiler
