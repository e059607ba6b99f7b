// flags.go defines constants for all CLI flag names.
//
// Using constants instead of string literals prevents typos and enables
// compile-time checking when flag names are used in both Flags().Type()
// definitions and GetType() calls.
//
// Naming convention: Flag<PascalCaseName> where name matches the kebab-case
// CLI flag (e.g., "no-rewrite" -> FlagNoRewrite).

package extension

// Flag name constants for CLI commands.
const (
	// Boolean flags

	FlagAll              = "all"                // Every version of an attachment
	FlagCount            = "count"              // Only print match counts
	FlagDiff             = "diff"               // Show diff output
	FlagDryRun           = "dry-run"            // Show what would happen
	FlagFilesWithMatches = "files-with-matches" // Only print matching page names
	FlagFlat             = "flat"               // Flatten directory structure on import
	FlagGlobal           = "global"             // Use global scope (~/.wikid)
	FlagIgnoreCase       = "ignore-case"        // Case-insensitive matching
	FlagInPlace          = "in-place"           // Edit in place (sed)
	FlagIncludeHidden    = "hidden"             // Include hidden files on import
	FlagInvertMatch      = "invert-match"       // Select non-matching lines
	FlagLocal            = "local"              // Use local scope (gitignored)
	FlagLong             = "long"               // Long format output
	FlagMCP              = "mcp"                // Serve MCP over stdio
	FlagNumber           = "number"             // Number output lines
	FlagRaw              = "raw"                // Raw output without rendering
	FlagReverse          = "reverse"            // Reverse sort order
	FlagShared           = "shared"             // Commit page data to git
	FlagTree             = "tree"               // Tree view output

	// String flags

	FlagExt      = "ext"      // File extension for import and export
	FlagFile     = "file"     // Read content from a file
	FlagHTTP     = "http"     // HTTP listen address
	FlagLevel    = "level"    // Minimum log level
	FlagLines    = "lines"    // Line range specification (e.g., "10:20")
	FlagNew      = "new"      // Replacement text
	FlagOld      = "old"      // Text to find
	FlagPage     = "page"     // Page filter
	FlagPrefix   = "prefix"   // Page name prefix
	FlagSince    = "since"    // Duration or date threshold
	FlagSort     = "sort"     // Sort field
	FlagTo       = "to"       // Target page prefix
	FlagVersions = "versions" // Version range (e.g., "3:5")
	FlagWith     = "with"     // Second page to compare against

	// Integer flags

	FlagContext = "context" // Lines of context around matches
	FlagLimit   = "limit"   // Limit number of results
	FlagVersion = "version" // Specific version number
)
