package config

// WordSize is the size in bytes of every stack slot and value
const WordSize = 4

// ModuleFileExt is the extension of serialized IL modules
const ModuleFileExt = ".mnc"

// SourceFileExt is the extension of MonC source files
const SourceFileExt = ".monc"

// ConfigFileNames are the recognized project config files, in lookup order
var ConfigFileNames = []string{"monc.yaml", "monc.yml", "monc.toml"}

// StoreModulePrefix marks a command-line module argument as a module store name
const StoreModulePrefix = "@"

// Defaults
const (
	DefaultEntry        = "main"
	DefaultMaxCycles    = 0 // unlimited
	DefaultMaxCallDepth = 4096
	DefaultStorePath    = ".monc/modules.db"
)

// MaxHeapWords bounds the core library heap, including the null word
const MaxHeapWords = 1 << 24

// Core library function names
const (
	PrintFuncName    = "print"
	PrintIntFuncName = "printint"
	MallocFuncName   = "malloc"
	FreeFuncName     = "free"
	MemsetFuncName   = "memset"
	PokeFuncName     = "poke"
	PeekFuncName     = "peek"
	SleepFuncName    = "sleep"
)
