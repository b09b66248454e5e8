package compiler

// analyzer performs the single post-parse correctness walk: declaration
// before use, return placement, member resolution against static type
// descriptors, and call arity. It also finalizes frame layouts, so a
// successful run leaves the AST annotated with resolved symbols and every
// function's frame sealed.
type analyzer struct {
	syms  *SymbolTable
	trace Tracer
}

// Analyze validates prog against syms. It aborts on the first error; on
// success the AST is unchanged apart from symbol/offset annotations.
func Analyze(prog []Stmt, syms *SymbolTable, trace Tracer) error {
	if trace == nil {
		trace = nopTracer{}
	}
	a := &analyzer{syms: syms, trace: trace}

	for _, s := range prog {
		switch n := s.(type) {
		case *FunctionDef:
			if err := a.checkFunction(n); err != nil {
				return err
			}
		case *StructDef, *EnumDef:
			// Descriptors were registered during parsing.
		default:
			if err := a.checkStmt(s, syms.Global, nil, false); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *analyzer) checkFunction(fn *FunctionDef) error {
	scope := NewScope(a.syms.Global)
	frame := a.syms.AddFrame(fn.Name)

	for _, param := range fn.Params {
		sym := &Symbol{Name: param, Kind: SymVariable}
		if err := frame.Alloc(sym, slotSize); err != nil {
			return err
		}
		if err := scope.Declare(sym); err != nil {
			return positionError(err, fn.Line, fn.Col)
		}
	}

	for _, s := range fn.Body {
		if err := a.checkStmt(s, scope, frame, true); err != nil {
			return err
		}
	}
	return frame.Seal()
}

// checkStmt walks one statement. frame is nil outside any function; block
// scopes are created on entry and discarded when the walk leaves them.
func (a *analyzer) checkStmt(s Stmt, scope *Scope, frame *Frame, inFunction bool) error {
	switch n := s.(type) {
	case *Assignment:
		return a.checkAssignment(n, scope, frame)

	case *IfStatement:
		if err := a.checkExpr(n.Cond, scope, false); err != nil {
			return err
		}
		thenScope := NewScope(scope)
		for _, st := range n.Then {
			if err := a.checkStmt(st, thenScope, frame, inFunction); err != nil {
				return err
			}
		}
		if n.Else != nil {
			elseScope := NewScope(scope)
			for _, st := range n.Else {
				if err := a.checkStmt(st, elseScope, frame, inFunction); err != nil {
					return err
				}
			}
		}
		return nil

	case *WhileLoop:
		if err := a.checkExpr(n.Cond, scope, false); err != nil {
			return err
		}
		bodyScope := NewScope(scope)
		for _, st := range n.Body {
			if err := a.checkStmt(st, bodyScope, frame, inFunction); err != nil {
				return err
			}
		}
		return nil

	case *ForLoop:
		// The loop variable lives in its own scope enclosing the body.
		loopScope := NewScope(scope)
		if err := a.checkAssignment(n.Init, loopScope, frame); err != nil {
			return err
		}
		if err := a.checkExpr(n.Cond, loopScope, false); err != nil {
			return err
		}
		if err := a.checkAssignment(n.Post, loopScope, frame); err != nil {
			return err
		}
		bodyScope := NewScope(loopScope)
		for _, st := range n.Body {
			if err := a.checkStmt(st, bodyScope, frame, inFunction); err != nil {
				return err
			}
		}
		return nil

	case *ReturnStatement:
		if !inFunction {
			return errorf(ErrReturnOutsideFunction, n.Line, n.Col, "return statement used outside a function")
		}
		if n.Value != nil {
			return a.checkExpr(n.Value, scope, false)
		}
		return nil

	case *ExprStatement:
		return a.checkExpr(n.X, scope, false)

	case *FunctionDef, *StructDef, *EnumDef:
		// The parser rejects these below the top level.
		return nil
	}
	return nil
}

// checkAssignment validates the value first (declaration before use: the
// right-hand side may not mention the variable being introduced), then
// resolves or declares the target.
func (a *analyzer) checkAssignment(n *Assignment, scope *Scope, frame *Frame) error {
	if err := a.checkExpr(n.Value, scope, true); err != nil {
		return err
	}

	inst, isInit := n.Value.(*StructInstantiation)

	switch target := n.Target.(type) {
	case *IdentifierExpr:
		sym, ok := scope.Lookup(target.Name)
		if ok {
			if sym.Kind != SymVariable {
				return errorf(ErrDuplicateDeclaration, target.Line, target.Col,
					"%q is already declared as a %s", target.Name, sym.Kind)
			}
			if isInit && sym.Type != inst.TypeName {
				return errorf(ErrParse, inst.Line, inst.Col,
					"cannot assign %s() to %q, which is not a %s instance", inst.TypeName, target.Name, inst.TypeName)
			}
			target.sym = sym
			a.trace.SymbolResolved(target.Name, sym)
			return nil
		}
		return a.declareVariable(target, n.Value, scope, frame)

	case *FieldAccess:
		if isInit {
			return errorf(ErrParse, inst.Line, inst.Col,
				"cannot assign %s() to a field; fields hold scalar values", inst.TypeName)
		}
		return a.resolveField(target, scope)

	default:
		// The parser only produces the two forms above.
		return errorf(ErrParse, n.Line, n.Col, "invalid assignment target")
	}
}

// declareVariable introduces a new variable on its first assignment. Struct
// instantiation gives the variable its struct type and an instance-sized
// slot; everything else occupies one scalar slot.
func (a *analyzer) declareVariable(target *IdentifierExpr, value Expr, scope *Scope, frame *Frame) error {
	typ := ""
	size := slotSize
	if inst, ok := value.(*StructInstantiation); ok {
		st, ok := a.syms.GetStruct(inst.TypeName)
		if !ok {
			return errorf(ErrUndeclaredVariable, inst.Line, inst.Col, "unknown struct type %q", inst.TypeName)
		}
		typ = inst.TypeName
		size = st.Size
	}

	if frame == nil {
		sym, err := a.syms.DeclareGlobalVar(scope, target.Name, typ, size)
		if err != nil {
			return positionError(err, target.Line, target.Col)
		}
		target.sym = sym
		a.trace.SymbolResolved(target.Name, sym)
		return nil
	}

	sym := &Symbol{Name: target.Name, Kind: SymVariable, Type: typ}
	if err := frame.Alloc(sym, size); err != nil {
		return err
	}
	if err := scope.Declare(sym); err != nil {
		return positionError(err, target.Line, target.Col)
	}
	target.sym = sym
	a.trace.SymbolResolved(target.Name, sym)
	return nil
}

// checkExpr validates an expression. allowStructInit is true only for the
// direct right-hand side of an assignment, the single position where a
// struct instantiation may appear.
func (a *analyzer) checkExpr(e Expr, scope *Scope, allowStructInit bool) error {
	switch n := e.(type) {
	case *NumberLiteral, *StringLiteral, *BoolLiteral:
		return nil

	case *IdentifierExpr:
		sym, ok := scope.Lookup(n.Name)
		if !ok {
			return errorf(ErrUndeclaredVariable, n.Line, n.Col, "use of undeclared variable %q", n.Name)
		}
		if sym.Kind != SymVariable {
			return errorf(ErrUndeclaredVariable, n.Line, n.Col, "%q is a %s, not a variable", n.Name, sym.Kind)
		}
		n.sym = sym
		a.trace.SymbolResolved(n.Name, sym)
		return nil

	case *BinaryExpr:
		if err := a.checkExpr(n.Left, scope, false); err != nil {
			return err
		}
		return a.checkExpr(n.Right, scope, false)

	case *UnaryExpr:
		return a.checkExpr(n.Operand, scope, false)

	case *TernaryExpr:
		if err := a.checkExpr(n.Cond, scope, false); err != nil {
			return err
		}
		if err := a.checkExpr(n.Then, scope, false); err != nil {
			return err
		}
		return a.checkExpr(n.Else, scope, false)

	case *FunctionCall:
		sym, ok := scope.Lookup(n.Name)
		if !ok {
			return errorf(ErrUndeclaredVariable, n.Line, n.Col, "call to undeclared function %q", n.Name)
		}
		if sym.Kind != SymFunction {
			return errorf(ErrUndeclaredVariable, n.Line, n.Col, "%q is a %s, not a function", n.Name, sym.Kind)
		}
		if len(n.Args) != sym.Arity {
			return errorf(ErrArityMismatch, n.Line, n.Col,
				"function %q expects %d argument(s), got %d", n.Name, sym.Arity, len(n.Args))
		}
		n.sym = sym
		a.trace.SymbolResolved(n.Name, sym)
		for _, arg := range n.Args {
			if err := a.checkExpr(arg, scope, false); err != nil {
				return err
			}
		}
		return nil

	case *FieldAccess:
		return a.resolveField(n, scope)

	case *EnumVariantAccess:
		et, ok := a.syms.GetEnum(n.EnumName)
		if !ok {
			return errorf(ErrUndeclaredVariable, n.Line, n.Col, "unknown enum type %q", n.EnumName)
		}
		ord, ok := et.Ordinal(n.Variant)
		if !ok {
			return errorf(ErrUnknownMember, n.Line, n.Col, "enum %q has no variant %q", n.EnumName, n.Variant)
		}
		n.ordinal = ord
		return nil

	case *StructInstantiation:
		if !allowStructInit {
			return errorf(ErrParse, n.Line, n.Col,
				"struct instantiation %s() is only allowed as the right-hand side of an assignment", n.TypeName)
		}
		return nil
	}
	return nil
}

// resolveField binds a field access to its base variable and the field's
// byte offset within the variable's struct descriptor.
func (a *analyzer) resolveField(f *FieldAccess, scope *Scope) error {
	id, ok := f.Object.(*IdentifierExpr)
	if !ok {
		// Fields hold scalars, so a chained access can never resolve.
		return errorf(ErrUnknownMember, f.Line, f.Col, "cannot access field %q of non-struct value %s", f.Field, f.Object)
	}
	sym, found := scope.Lookup(id.Name)
	if !found {
		return errorf(ErrUndeclaredVariable, id.Line, id.Col, "use of undeclared variable %q", id.Name)
	}
	if sym.Kind != SymVariable || sym.Type == "" {
		return errorf(ErrUnknownMember, f.Line, f.Col, "%q has no field %q", id.Name, f.Field)
	}
	st, found := a.syms.GetStruct(sym.Type)
	if !found {
		return errorf(ErrUnknownMember, f.Line, f.Col, "%q has no field %q", id.Name, f.Field)
	}
	off, found := st.FieldOffset(f.Field)
	if !found {
		return errorf(ErrUnknownMember, f.Line, f.Col, "struct %q has no field %q", sym.Type, f.Field)
	}
	id.sym = sym
	f.base = sym
	f.offset = off
	a.trace.SymbolResolved(id.Name, sym)
	return nil
}

// positionError fills in a source position on an *Error raised without one.
func positionError(err error, line, col int) error {
	if cerr, ok := err.(*Error); ok && cerr.Line == 0 {
		cerr.Line = line
		cerr.Col = col
	}
	return err
}
