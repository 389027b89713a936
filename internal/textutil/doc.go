// Package textutil sanitizes user-supplied names for filesystem use.
//
// Project names flow into output filenames and workspace directory names;
// SanitizeFileName and SanitizeToken strip or replace the characters that
// would break either.
package textutil
