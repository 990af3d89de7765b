package vm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/funvibe/monc/internal/config"
)

// DebuggerCLI provides a command-line interface for the debugger
type DebuggerCLI struct {
	debugger *Debugger
	vm       *VM
	scanner  *bufio.Scanner
	input    io.Reader
	output   io.Writer
}

// NewDebuggerCLI creates a new CLI debugger
func NewDebuggerCLI(debugger *Debugger, vm *VM) *DebuggerCLI {
	return &DebuggerCLI{
		debugger: debugger,
		vm:       vm,
		input:    os.Stdin,
		output:   os.Stdout,
	}
}

// SetInput sets the input reader
func (cli *DebuggerCLI) SetInput(r io.Reader) {
	cli.input = r
	cli.scanner = bufio.NewScanner(r)
}

// SetOutput sets the output writer
func (cli *DebuggerCLI) SetOutput(w io.Writer) {
	cli.output = w
}

// Run installs the CLI as the debugger's stop handler and attaches it
func (cli *DebuggerCLI) Run() {
	if cli.scanner == nil {
		cli.scanner = bufio.NewScanner(cli.input)
	}

	cli.debugger.Output = cli.output
	cli.debugger.OnBreak = cli.onStop
	cli.debugger.OnFinished = cli.onFinished
	cli.debugger.Attach()

	fmt.Fprintf(cli.output, "Debugger started. Type 'help' for commands.\n")
}

func (cli *DebuggerCLI) onFinished(_ *Debugger, success bool) {
	if success {
		fmt.Fprintf(cli.output, "Program finished, result %d.\n", cli.vm.ReturnValue())
		return
	}
	if err := cli.vm.LastError(); err != nil {
		fmt.Fprintf(cli.output, "Program aborted: %v\n", err)
		return
	}
	fmt.Fprintf(cli.output, "Program aborted.\n")
}

// onStop runs the command loop until a command resumes execution
func (cli *DebuggerCLI) onStop(dbg *Debugger, reason BreakReason) {
	dbg.PrintLocation(reason)

	for {
		fmt.Fprintf(cli.output, "(moncdbg) ")
		if !cli.scanner.Scan() {
			// EOF or error - detach and let the program run to completion
			if err := cli.scanner.Err(); err != nil {
				fmt.Fprintf(cli.output, "\nDebugger error: %v\n", err)
			} else {
				fmt.Fprintf(cli.output, "\nExiting debugger (EOF).\n")
			}
			dbg.Detach()
			cli.vm.Continue()
			return
		}

		parts := strings.Fields(cli.scanner.Text())
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help", "h":
			printHelp(cli.output)
		case "continue", "c":
			dbg.Continue()
			return
		case "step", "s":
			dbg.Step()
			return
		case "into", "i":
			dbg.StepInto()
			return
		case "over", "next", "n":
			dbg.StepOver()
			return
		case "out", "finish":
			dbg.StepOut()
			return
		case "break", "b":
			cli.handleBreakpoint(args)
		case "delete", "d":
			cli.handleDeleteBreakpoint(args)
		case "list", "l":
			cli.handleListBreakpoints()
		case "reg":
			cli.handleRegisters()
		case "read":
			cli.handleRead(args)
		case "locals":
			dbg.PrintLocals()
		case "backtrace", "bt":
			dbg.PrintCallStack()
		case "where":
			dbg.PrintLocation(reason)
		case "quit", "q":
			cli.vm.Abort()
			return
		default:
			fmt.Fprintf(cli.output, "Unknown command: %s. Type 'help' for help.\n", cmd)
		}
	}
}

// PrintHelp prints help information (exported for testing)
func (cli *DebuggerCLI) PrintHelp() {
	printHelp(cli.output)
}

func printHelp(output io.Writer) {
	help := `Debugger commands:
  help, h                - Show this help
  continue, c            - Continue execution until next breakpoint
  step, s                - Execute one instruction
  into, i                - Step to the next source position, entering calls
  over, next, n          - Step to the next source position in this function
  out, finish            - Run until the current function returns
  break, b [file:]line   - Set breakpoint
  delete, d [file:]line  - Delete breakpoint
  list, l                - List all breakpoints
  reg                    - Show accumulator, pc and cycle count
  read <offset>          - Read a word of the current frame
  locals                 - Show local variables
  backtrace, bt          - Show call stack
  where                  - Show the current location
  quit, q                - Abort the program
`
	fmt.Fprint(output, help)
}

// parseLocation parses [file:]line; a bare line uses the current file
func (cli *DebuggerCLI) parseLocation(arg string) (string, int, error) {
	file, line, err := config.ParseBreakpoint(arg)
	if err != nil {
		return "", 0, err
	}
	if file == "" {
		sym, ok := cli.debugger.SourceLocation(0)
		if !ok {
			return "", 0, fmt.Errorf("no current file, use <file>:<line>")
		}
		file = sym.File
	}
	return file, line, nil
}

func (cli *DebuggerCLI) handleBreakpoint(args []string) {
	if len(args) == 0 {
		fmt.Fprintf(cli.output, "Usage: break [file:]line\n")
		return
	}
	file, line, err := cli.parseLocation(args[0])
	if err != nil {
		fmt.Fprintf(cli.output, "%v\n", err)
		return
	}
	bp := cli.debugger.SetBreakpoint(file, line)
	if bp.Resolved() {
		fmt.Fprintf(cli.output, "Breakpoint set at %s\n", cli.debugger.FormatLocation(file, line))
	} else {
		fmt.Fprintf(cli.output, "Breakpoint pending at %s\n", cli.debugger.FormatLocation(file, line))
	}
}

func (cli *DebuggerCLI) handleDeleteBreakpoint(args []string) {
	if len(args) == 0 {
		fmt.Fprintf(cli.output, "Usage: delete [file:]line\n")
		return
	}
	file, line, err := cli.parseLocation(args[0])
	if err != nil {
		fmt.Fprintf(cli.output, "%v\n", err)
		return
	}
	if !cli.debugger.RemoveBreakpoint(file, line) {
		fmt.Fprintf(cli.output, "No breakpoint at %s\n", cli.debugger.FormatLocation(file, line))
		return
	}
	fmt.Fprintf(cli.output, "Breakpoint removed at %s\n", cli.debugger.FormatLocation(file, line))
}

func (cli *DebuggerCLI) handleListBreakpoints() {
	bps := cli.debugger.Breakpoints()
	if len(bps) == 0 {
		fmt.Fprintf(cli.output, "No breakpoints set.\n")
		return
	}
	fmt.Fprintf(cli.output, "Breakpoints:\n")
	for i, bp := range bps {
		state := ""
		if !bp.Resolved() {
			state = " (pending)"
		}
		fmt.Fprintf(cli.output, "  %d. %s%s\n", i+1, cli.debugger.FormatLocation(bp.File, bp.Line), state)
	}
}

func (cli *DebuggerCLI) handleRegisters() {
	pc := -1
	if info, ok := cli.vm.GetStackFrame(0); ok {
		pc = info.PC
	}
	fmt.Fprintf(cli.output, "A = %d\npc = %04d\ncycles = %d\ndepth = %d\n",
		cli.vm.ReturnValue(), pc, cli.vm.Cycles(), cli.vm.CallStackDepth())
}

func (cli *DebuggerCLI) handleRead(args []string) {
	if len(args) == 0 {
		fmt.Fprintf(cli.output, "Usage: read <offset>\n")
		return
	}
	offset, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(cli.output, "Invalid offset: %s\n", args[0])
		return
	}
	mem, ok := cli.vm.GetStackFrameMemory(0)
	if !ok {
		fmt.Fprintf(cli.output, "No frame.\n")
		return
	}
	val, err := mem.ReadWord(offset)
	if err != nil {
		fmt.Fprintf(cli.output, "%v\n", err)
		return
	}
	fmt.Fprintf(cli.output, "[%d] = %d\n", offset, val)
}
