// Package errors provides structured error handling for DocsMCP.
//
// Codes take the form ERR_XXX_DESCRIPTION, with the leading digit naming
// the subsystem: 1xx configuration, 2xx local IO, 3xx network and remote
// sources, 4xx caller input, 5xx internal bugs, 6xx format extraction,
// 7xx the index database.
package errors

import "slices"

// Category classifies an error by the subsystem that produced it.
type Category string

const (
	CategoryConfig     Category = "CONFIG"     // configuration loading and validation
	CategoryIO         Category = "IO"         // local file and disk access
	CategoryNetwork    Category = "NETWORK"    // remote source transport
	CategoryValidation Category = "VALIDATION" // caller input
	CategoryInternal   Category = "INTERNAL"   // bugs and unexpected states
	CategoryExtract    Category = "EXTRACT"    // format decode and parse
	CategoryStore      Category = "STORE"      // index database
)

// Severity grades how an error affects the operation that hit it.
type Severity string

const (
	SeverityFatal   Severity = "FATAL"   // abort the whole operation
	SeverityError   Severity = "ERROR"   // this item failed, keep going
	SeverityWarning Severity = "WARNING" // degraded but functional
)

// Error codes, banded by category.
const (
	// Config (1xx)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"
	ErrCodeRootMissing    = "ERR_103_ROOT_MISSING"

	// IO (2xx)
	ErrCodeFileNotFound   = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission = "ERR_202_FILE_PERMISSION"
	ErrCodeDiskFull       = "ERR_203_DISK_FULL"
	ErrCodeFileTooLarge   = "ERR_204_FILE_TOO_LARGE"

	// Network (3xx)
	ErrCodeNetworkTimeout     = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeNetworkUnavailable = "ERR_302_NETWORK_UNAVAILABLE"
	ErrCodeRateLimited        = "ERR_303_RATE_LIMITED"
	ErrCodeAuthFailed         = "ERR_304_AUTH_FAILED"

	// Validation (4xx)
	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"
	ErrCodeQueryEmpty   = "ERR_402_QUERY_EMPTY"
	ErrCodeInvalidPath  = "ERR_403_INVALID_PATH"

	// Internal (5xx)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeSearchFailed = "ERR_502_SEARCH_FAILED"

	// Extraction (6xx)
	ErrCodeExtractFailed    = "ERR_601_EXTRACT_FAILED"
	ErrCodeMalformedArchive = "ERR_602_MALFORMED_ARCHIVE"
	ErrCodeMalformedXML     = "ERR_603_MALFORMED_XML"
	ErrCodePDFUnreadable    = "ERR_604_PDF_UNREADABLE"

	// Store (7xx)
	ErrCodeStoreOpen    = "ERR_701_STORE_OPEN"
	ErrCodeStoreWrite   = "ERR_702_STORE_WRITE"
	ErrCodeStoreRead    = "ERR_703_STORE_READ"
	ErrCodeCorruptIndex = "ERR_704_CORRUPT_INDEX"
	ErrCodeDocNotFound  = "ERR_705_DOCUMENT_NOT_FOUND"
	ErrCodeCrawlBusy    = "ERR_706_CRAWL_BUSY"
)

// categoryByBand maps the hundreds digit of a code to its category.
var categoryByBand = map[byte]Category{
	'1': CategoryConfig,
	'2': CategoryIO,
	'3': CategoryNetwork,
	'4': CategoryValidation,
	'5': CategoryInternal,
	'6': CategoryExtract,
	'7': CategoryStore,
}

// fatalCodes abort the current operation outright.
var fatalCodes = []string{ErrCodeCorruptIndex, ErrCodeDiskFull, ErrCodeStoreOpen}

// retryableCodes are transient remote-source failures.
var retryableCodes = []string{ErrCodeNetworkTimeout, ErrCodeNetworkUnavailable, ErrCodeRateLimited}

// categoryFromCode reads the numeric band out of a code like
// "ERR_101_CONFIG_NOT_FOUND".
func categoryFromCode(code string) Category {
	if len(code) > 4 {
		if cat, ok := categoryByBand[code[4]]; ok {
			return cat
		}
	}
	return CategoryInternal
}

// severityFromCode reads the severity off the code band.
func severityFromCode(code string) Severity {
	switch {
	case slices.Contains(fatalCodes, code):
		return SeverityFatal
	case isRetryableCode(code):
		// Retryable failures are degradation, not hard errors
		return SeverityWarning
	default:
		return SeverityError
	}
}

func isRetryableCode(code string) bool {
	return slices.Contains(retryableCodes, code)
}
