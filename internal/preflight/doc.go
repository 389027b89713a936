// Package preflight provides readiness checks for the filesystem paths and
// external binaries the render daemon depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs failures as warnings so an
//     unmounted output volume does not block launch.
//   - The CLI "splice config check" and "splice status" commands use the
//     individual check functions to display readiness per item.
package preflight
