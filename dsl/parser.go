package dsl

import "fmt"

// maxRange bounds `for i in range( n )` so a mutated program cannot spin.
const maxRange = 1 << 16

var keywords = map[string]struct{}{
	"if": {}, "elif": {}, "else": {}, "for": {}, "in": {}, "return": {}, "pass": {},
	"and": {}, "or": {}, "not": {}, "True": {}, "False": {},
	"len": {}, "range": {}, "actions": {}, "score": {}, "state": {},
}

type env[S any, M comparable] struct {
	ctx    Context[S, M]
	vars   map[string]Value
	scores []float64
	scored bool
	ret    Value
}

type exprFunc[S any, M comparable] func(*env[S, M]) (Value, error)

// stmtFunc reports true once a return statement has run.
type stmtFunc[S any, M comparable] func(*env[S, M]) (bool, error)

func run[S any, M comparable](stmts []stmtFunc[S, M], e *env[S, M]) (bool, error) {
	for _, s := range stmts {
		done, err := s(e)
		if err != nil || done {
			return done, err
		}
	}
	return false, nil
}

type parser[S any, M comparable] struct {
	features *Features[S, M]
	lines    []line
	pos      int

	toks []token
	i    int
	no   int
}

func (p *parser[S, M]) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrSyntax, p.no, fmt.Sprintf(format, args...))
}

func (p *parser[S, M]) load() {
	l := p.lines[p.pos]
	p.toks, p.i, p.no = l.toks, 0, l.no
	p.pos++
}

func (p *parser[S, M]) peek() token {
	if p.i < len(p.toks) {
		return p.toks[p.i]
	}
	return token{kind: tkOp, text: "<end of line>"}
}

func (p *parser[S, M]) next() token {
	t := p.peek()
	if p.i < len(p.toks) {
		p.i++
	}
	return t
}

func (p *parser[S, M]) is(text string) bool {
	if p.i >= len(p.toks) {
		return false
	}
	t := p.toks[p.i]
	return t.kind != tkNumber && t.text == text
}

func (p *parser[S, M]) accept(text string) bool {
	if p.is(text) {
		p.i++
		return true
	}
	return false
}

func (p *parser[S, M]) expect(text string) error {
	if !p.accept(text) {
		return p.errorf("expected %q, got %q", text, p.peek().text)
	}
	return nil
}

func (p *parser[S, M]) endLine() error {
	if p.i < len(p.toks) {
		return p.errorf("unexpected %q", p.toks[p.i].text)
	}
	return nil
}

func (p *parser[S, M]) name() (string, error) {
	t := p.next()
	if t.kind != tkIdent {
		return "", p.errorf("expected a name, got %q", t.text)
	}
	if _, ok := keywords[t.text]; ok {
		return "", p.errorf("%q is reserved", t.text)
	}
	return t.text, nil
}

func (p *parser[S, M]) nextLineStartsWith(indent int, keyword string) bool {
	if p.pos >= len(p.lines) {
		return false
	}
	l := p.lines[p.pos]
	return l.indent == indent && len(l.toks) > 0 && l.toks[0].kind == tkIdent && l.toks[0].text == keyword
}

func (p *parser[S, M]) block(indent int) ([]stmtFunc[S, M], error) {
	var stmts []stmtFunc[S, M]
	for p.pos < len(p.lines) {
		l := p.lines[p.pos]
		if l.indent < indent {
			break
		}
		if l.indent > indent {
			p.no = l.no
			return nil, p.errorf("unexpected indent")
		}
		p.load()
		s, err := p.statement(indent)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

// body parses the block that must follow a header line at indent.
func (p *parser[S, M]) body(indent int) ([]stmtFunc[S, M], error) {
	if p.pos >= len(p.lines) || p.lines[p.pos].indent <= indent {
		return nil, p.errorf("expected an indented block")
	}
	return p.block(p.lines[p.pos].indent)
}

func (p *parser[S, M]) statement(indent int) (stmtFunc[S, M], error) {
	t := p.peek()
	if t.kind != tkIdent {
		return nil, p.errorf("unexpected %q", t.text)
	}

	switch t.text {
	case "if":
		return p.ifStatement(indent)
	case "for":
		return p.forStatement(indent)
	case "return":
		p.next()
		value, err := p.expression()
		if err != nil {
			return nil, err
		}
		if err := p.endLine(); err != nil {
			return nil, err
		}
		return func(e *env[S, M]) (bool, error) {
			v, err := value(e)
			if err != nil {
				return false, err
			}
			e.ret = v
			return true, nil
		}, nil
	case "pass":
		p.next()
		if err := p.endLine(); err != nil {
			return nil, err
		}
		return func(*env[S, M]) (bool, error) { return false, nil }, nil
	case "score":
		return p.scoreAssign()
	}
	return p.assign()
}

func (p *parser[S, M]) ifStatement(indent int) (stmtFunc[S, M], error) {
	// if or elif
	p.next()
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(":"); err != nil {
		return nil, err
	}
	if err := p.endLine(); err != nil {
		return nil, err
	}

	then, err := p.body(indent)
	if err != nil {
		return nil, err
	}

	var els []stmtFunc[S, M]
	switch {
	case p.nextLineStartsWith(indent, "elif"):
		p.load()
		s, err := p.ifStatement(indent)
		if err != nil {
			return nil, err
		}
		els = []stmtFunc[S, M]{s}
	case p.nextLineStartsWith(indent, "else"):
		p.load()
		p.next()
		if err := p.expect(":"); err != nil {
			return nil, err
		}
		if err := p.endLine(); err != nil {
			return nil, err
		}
		els, err = p.body(indent)
		if err != nil {
			return nil, err
		}
	}

	return func(e *env[S, M]) (bool, error) {
		v, err := cond(e)
		if err != nil {
			return false, err
		}
		if v.Truth() {
			return run(then, e)
		}
		return run(els, e)
	}, nil
}

func (p *parser[S, M]) forStatement(indent int) (stmtFunc[S, M], error) {
	p.next()
	name, err := p.name()
	if err != nil {
		return nil, err
	}
	if err := p.expect("in"); err != nil {
		return nil, err
	}

	var bound exprFunc[S, M]
	overMoves := p.accept("actions")
	if !overMoves {
		if err := p.expect("range"); err != nil {
			return nil, err
		}
		if err := p.expect("("); err != nil {
			return nil, err
		}
		bound, err = p.expression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
	}

	if err := p.expect(":"); err != nil {
		return nil, err
	}
	if err := p.endLine(); err != nil {
		return nil, err
	}
	body, err := p.body(indent)
	if err != nil {
		return nil, err
	}

	if overMoves {
		return func(e *env[S, M]) (bool, error) {
			for i := range e.ctx.Moves {
				e.vars[name] = Ref(i)
				if done, err := run(body, e); err != nil || done {
					return done, err
				}
			}
			return false, nil
		}, nil
	}

	return func(e *env[S, M]) (bool, error) {
		v, err := bound(e)
		if err != nil {
			return false, err
		}
		if v.Kind != Number {
			return false, fmt.Errorf("%w: range of a move", ErrType)
		}
		n := int(v.Num)
		if n > maxRange {
			return false, fmt.Errorf("%w: range(%d) exceeds %d", ErrRuntime, n, maxRange)
		}
		for i := 0; i < n; i++ {
			e.vars[name] = Num(float64(i))
			if done, err := run(body, e); err != nil || done {
				return done, err
			}
		}
		return false, nil
	}, nil
}

func (p *parser[S, M]) assignOp() (string, error) {
	t := p.next()
	switch t.text {
	case "=", "+=", "-=", "*=":
		return t.text, nil
	}
	return "", p.errorf("expected an assignment, got %q", t.text)
}

func (p *parser[S, M]) assign() (stmtFunc[S, M], error) {
	name, err := p.name()
	if err != nil {
		return nil, err
	}
	op, err := p.assignOp()
	if err != nil {
		return nil, err
	}
	value, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.endLine(); err != nil {
		return nil, err
	}

	return func(e *env[S, M]) (bool, error) {
		v, err := value(e)
		if err != nil {
			return false, err
		}
		if op == "=" {
			e.vars[name] = v
			return false, nil
		}
		cur, ok := e.vars[name]
		if !ok {
			return false, fmt.Errorf("%w: %s", ErrUndefinedVariable, name)
		}
		result, err := arith(op[:1], cur, v)
		if err != nil {
			return false, err
		}
		e.vars[name] = result
		return false, nil
	}, nil
}

func (p *parser[S, M]) scoreAssign() (stmtFunc[S, M], error) {
	p.next()
	if err := p.expect("["); err != nil {
		return nil, err
	}
	index, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expect("]"); err != nil {
		return nil, err
	}
	op, err := p.assignOp()
	if err != nil {
		return nil, err
	}
	value, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.endLine(); err != nil {
		return nil, err
	}

	return func(e *env[S, M]) (bool, error) {
		iv, err := index(e)
		if err != nil {
			return false, err
		}
		idx, err := e.ctx.Index(iv)
		if err != nil {
			return false, err
		}
		v, err := value(e)
		if err != nil {
			return false, err
		}
		if v.Kind != Number {
			return false, fmt.Errorf("%w: score must be a number", ErrType)
		}
		if op == "=" {
			e.scores[idx] = v.Num
		} else {
			result, err := arith(op[:1], Num(e.scores[idx]), v)
			if err != nil {
				return false, err
			}
			e.scores[idx] = result.Num
		}
		e.scored = true
		return false, nil
	}, nil
}

func (p *parser[S, M]) expression() (exprFunc[S, M], error) {
	return p.or()
}

func (p *parser[S, M]) or() (exprFunc[S, M], error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.accept("or") {
		l := left
		r, err := p.and()
		if err != nil {
			return nil, err
		}
		left = func(e *env[S, M]) (Value, error) {
			a, err := l(e)
			if err != nil {
				return Value{}, err
			}
			if a.Truth() {
				return Bool(true), nil
			}
			b, err := r(e)
			if err != nil {
				return Value{}, err
			}
			return Bool(b.Truth()), nil
		}
	}
	return left, nil
}

func (p *parser[S, M]) and() (exprFunc[S, M], error) {
	left, err := p.not()
	if err != nil {
		return nil, err
	}
	for p.accept("and") {
		l := left
		r, err := p.not()
		if err != nil {
			return nil, err
		}
		left = func(e *env[S, M]) (Value, error) {
			a, err := l(e)
			if err != nil {
				return Value{}, err
			}
			if !a.Truth() {
				return Bool(false), nil
			}
			b, err := r(e)
			if err != nil {
				return Value{}, err
			}
			return Bool(b.Truth()), nil
		}
	}
	return left, nil
}

func (p *parser[S, M]) not() (exprFunc[S, M], error) {
	if p.accept("not") {
		operand, err := p.not()
		if err != nil {
			return nil, err
		}
		return func(e *env[S, M]) (Value, error) {
			v, err := operand(e)
			if err != nil {
				return Value{}, err
			}
			return Bool(!v.Truth()), nil
		}, nil
	}
	return p.comparison()
}

func (p *parser[S, M]) comparison() (exprFunc[S, M], error) {
	left, err := p.additive()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	switch t.text {
	case "<", "<=", ">", ">=", "==", "!=":
		if t.kind != tkOp {
			return left, nil
		}
		p.next()
		right, err := p.additive()
		if err != nil {
			return nil, err
		}
		op := t.text
		return func(e *env[S, M]) (Value, error) {
			a, err := left(e)
			if err != nil {
				return Value{}, err
			}
			b, err := right(e)
			if err != nil {
				return Value{}, err
			}
			return compare(op, a, b)
		}, nil
	}
	return left, nil
}

func (p *parser[S, M]) additive() (exprFunc[S, M], error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.is("+") || p.is("-") {
		op := p.next().text
		l := left
		r, err := p.term()
		if err != nil {
			return nil, err
		}
		left = binary(op, l, r)
	}
	return left, nil
}

func (p *parser[S, M]) term() (exprFunc[S, M], error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.is("*") || p.is("/") {
		op := p.next().text
		l := left
		r, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = binary(op, l, r)
	}
	return left, nil
}

func (p *parser[S, M]) unary() (exprFunc[S, M], error) {
	if p.accept("-") {
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return func(e *env[S, M]) (Value, error) {
			v, err := operand(e)
			if err != nil {
				return Value{}, err
			}
			return arith("-", Num(0), v)
		}, nil
	}
	return p.primary()
}

func (p *parser[S, M]) primary() (exprFunc[S, M], error) {
	t := p.next()
	switch t.kind {
	case tkNumber:
		v := Num(t.num)
		return func(*env[S, M]) (Value, error) { return v, nil }, nil
	case tkOp:
		if t.text != "(" {
			return nil, p.errorf("unexpected %q", t.text)
		}
		inner, err := p.expression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return inner, nil
	}

	switch t.text {
	case "True", "False":
		v := Bool(t.text == "True")
		return func(*env[S, M]) (Value, error) { return v, nil }, nil
	case "actions":
		if err := p.expect("["); err != nil {
			return nil, err
		}
		index, err := p.expression()
		if err != nil {
			return nil, err
		}
		if err := p.expect("]"); err != nil {
			return nil, err
		}
		return func(e *env[S, M]) (Value, error) {
			v, err := index(e)
			if err != nil {
				return Value{}, err
			}
			idx, err := e.ctx.Index(v)
			if err != nil {
				return Value{}, err
			}
			return Ref(idx), nil
		}, nil
	case "score":
		if err := p.expect("["); err != nil {
			return nil, err
		}
		index, err := p.expression()
		if err != nil {
			return nil, err
		}
		if err := p.expect("]"); err != nil {
			return nil, err
		}
		return func(e *env[S, M]) (Value, error) {
			v, err := index(e)
			if err != nil {
				return Value{}, err
			}
			idx, err := e.ctx.Index(v)
			if err != nil {
				return Value{}, err
			}
			return Num(e.scores[idx]), nil
		}, nil
	case "len":
		if err := p.expect("("); err != nil {
			return nil, err
		}
		if !p.accept("actions") && !p.accept("score") {
			return nil, p.errorf("len takes actions or score, got %q", p.peek().text)
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return func(e *env[S, M]) (Value, error) {
			return Num(float64(len(e.ctx.Moves))), nil
		}, nil
	}

	if _, ok := keywords[t.text]; ok {
		return nil, p.errorf("unexpected %q", t.text)
	}

	if p.is("(") {
		return p.call(t.text)
	}

	name := t.text
	return func(e *env[S, M]) (Value, error) {
		v, ok := e.vars[name]
		if !ok {
			return Value{}, fmt.Errorf("%w: %s", ErrUndefinedVariable, name)
		}
		return v, nil
	}, nil
}

func (p *parser[S, M]) call(name string) (exprFunc[S, M], error) {
	feature, ok := p.features.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: line %d: %s", ErrUnknownFeature, p.no, name)
	}
	p.next()

	var args []exprFunc[S, M]
	for !p.is(")") {
		// state is implicit
		if p.is("state") && p.i+1 < len(p.toks) && (p.toks[p.i+1].text == "," || p.toks[p.i+1].text == ")") {
			p.next()
		} else {
			arg, err := p.expression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		if !p.accept(",") {
			break
		}
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}

	if len(args) != feature.Arity {
		return nil, p.errorf("%s takes %d arguments, got %d", name, feature.Arity, len(args))
	}

	fn := feature.Func
	return func(e *env[S, M]) (Value, error) {
		values := make([]Value, len(args))
		for i, arg := range args {
			v, err := arg(e)
			if err != nil {
				return Value{}, err
			}
			values[i] = v
		}
		out, err := fn(e.ctx, values)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %s: %w", ErrRuntime, name, err)
		}
		return Num(out), nil
	}, nil
}

func binary[S any, M comparable](op string, l, r exprFunc[S, M]) exprFunc[S, M] {
	return func(e *env[S, M]) (Value, error) {
		a, err := l(e)
		if err != nil {
			return Value{}, err
		}
		b, err := r(e)
		if err != nil {
			return Value{}, err
		}
		return arith(op, a, b)
	}
}

func arith(op string, a, b Value) (Value, error) {
	if a.Kind != Number || b.Kind != Number {
		return Value{}, fmt.Errorf("%w: %s %s %s", ErrType, a.Kind, op, b.Kind)
	}
	switch op {
	case "+":
		return Num(a.Num + b.Num), nil
	case "-":
		return Num(a.Num - b.Num), nil
	case "*":
		return Num(a.Num * b.Num), nil
	case "/":
		if b.Num == 0 {
			return Value{}, fmt.Errorf("%w: division by zero", ErrRuntime)
		}
		return Num(a.Num / b.Num), nil
	}
	return Value{}, fmt.Errorf("%w: unknown operator %q", ErrRuntime, op)
}

func compare(op string, a, b Value) (Value, error) {
	if a.Kind != b.Kind {
		switch op {
		case "==":
			return Bool(false), nil
		case "!=":
			return Bool(true), nil
		}
		return Value{}, fmt.Errorf("%w: %s %s %s", ErrType, a.Kind, op, b.Kind)
	}

	var x, y float64
	if a.Kind == MoveRef {
		x, y = float64(a.Move), float64(b.Move)
		if op != "==" && op != "!=" {
			return Value{}, fmt.Errorf("%w: moves are not ordered", ErrType)
		}
	} else {
		x, y = a.Num, b.Num
	}

	switch op {
	case "<":
		return Bool(x < y), nil
	case "<=":
		return Bool(x <= y), nil
	case ">":
		return Bool(x > y), nil
	case ">=":
		return Bool(x >= y), nil
	case "==":
		return Bool(x == y), nil
	case "!=":
		return Bool(x != y), nil
	}
	return Value{}, fmt.Errorf("%w: unknown comparison %q", ErrRuntime, op)
}
