package emit

import (
	"github.com/dsandbox/rewriter/classfile"
	"github.com/dsandbox/rewriter/opcodes"
	"github.com/dsandbox/rewriter/sberrors"
)

// DisallowCatchingBlacklisted is DisallowCatchingBlacklistedExceptions:
// the rewriter signals rule violations and budget traps by throwing its
// own internal exception types, and user code must never be able to
// intercept one with an overly broad catch (Throwable, Exception,
// RuntimeException). This emitter does not touch instructions; its check
// runs once per method against the exception table, so it is a no-op on
// every individual instruction and instead exposed via CheckHandlers for
// the Rewrite Driver to call directly.
type DisallowCatchingBlacklisted struct {
	cfg Config
}

// NewDisallowCatchingBlacklisted builds the checker for the Rewrite
// Driver to call directly against each method's exception table (see
// CheckHandlers). NewPipeline also places it in the per-instruction chain,
// where its Emit is a no-op since it has nothing to say about any
// individual instruction.
func NewDisallowCatchingBlacklisted(cfg Config) DisallowCatchingBlacklisted {
	return DisallowCatchingBlacklisted{cfg: cfg}
}

func (DisallowCatchingBlacklisted) Name() string { return "DisallowCatchingBlacklistedExceptions" }

func (DisallowCatchingBlacklisted) Emit(classfile.Instruction, *MethodContext, *classfile.Sequence) {}

// CheckHandlers reports a diagnostic for every exception handler in
// handlers whose catch type is, or is a supertype of, one of the
// blacklisted internal signal types, since such a handler would
// intercept a signal the sandbox boundary relies on propagating past
// user code.
func (e DisallowCatchingBlacklisted) CheckHandlers(mctx *MethodContext, handlers []classfile.ExceptionHandler) {
	for _, h := range handlers {
		if h.CatchType == "" { // catch-all (finally) blocks always run; not interceptable rethrow
			continue
		}
		for _, blacklisted := range e.cfg.BlacklistedExceptionTypes {
			if h.CatchType == blacklisted || isBroadCatchAll(h.CatchType) {
				mctx.Analysis.Report(sberrors.Diagnostic{
					Severity: sberrors.Error,
					Class:    mctx.Class,
					Member:   mctx.Method + mctx.Descriptor,
					Message:  "catch handler for " + h.CatchType + " may intercept an internal control-flow signal",
				})
			}
		}
	}
}

func isBroadCatchAll(catchType string) bool {
	switch catchType {
	case "java/lang/Throwable", "java/lang/Exception", "java/lang/RuntimeException", "java/lang/Error":
		return true
	default:
		return false
	}
}

// HandleExceptionUnwrapper converts a host throwable caught from pinned
// code into its sandbox counterpart right at a handler's entry point
// (classfile.Instruction.HandlerEntry, set at decode time from the
// method's exception table), before user code -- which only ever sees
// sandbox throwables -- runs.
type HandleExceptionUnwrapper struct {
	cfg Config
}

func (HandleExceptionUnwrapper) Name() string { return "HandleExceptionUnwrapper" }

func (e HandleExceptionUnwrapper) Emit(inst classfile.Instruction, _ *MethodContext, seq *classfile.Sequence) {
	if !inst.HandlerEntry {
		return
	}
	helper := e.cfg.UnwrapThrowable
	helper.Kind = classfile.InvokeStaticKind
	seq.Prefix = append(seq.Prefix, classfile.Instruction{Op: opcodes.InvokeStatic, Ref: &helper})
}

// ThrowExceptionWrapper converts a sandbox throwable into its host
// counterpart immediately before an athrow that would otherwise propagate
// past the sandbox boundary into pinned caller code.
type ThrowExceptionWrapper struct {
	cfg Config
}

func (ThrowExceptionWrapper) Name() string { return "ThrowExceptionWrapper" }

func (e ThrowExceptionWrapper) Emit(inst classfile.Instruction, _ *MethodContext, seq *classfile.Sequence) {
	if inst.Op != opcodes.Athrow {
		return
	}
	helper := e.cfg.WrapThrowable
	helper.Kind = classfile.InvokeStaticKind
	seq.Prefix = append(seq.Prefix, classfile.Instruction{Op: opcodes.InvokeStatic, Ref: &helper})
}
