// Package peggyvm compiles Parsing Expression Grammars to programs for a
// backtracking stack machine, and runs those programs over byte input.
//
// Compile lowers a peg.Grammar to a Program: an arena of Inst records that
// refer to one another by index. Program.Exec returns a Machine, which steps
// through the program one instruction at a time. A Machine owns its stack,
// memo table, symbol table and AST log; a Program is immutable and may be
// shared by any number of machines.
//
// Every program starts with the same three instructions:
//
//   0: CALL <start>
//   1: EXIT 1
//   2: EXIT 0
//
// A failure that finds no choice frame lands on instruction 2.
//
//
// Programs serialize to bytecode (see MarshalBinary). Instructions use the
// following encoding:
//
// ONE BYTE INSTRUCTION PLUS ZERO TO TWO IMMEDIATES:
//
//   [ 0aaa | bbcc ] ...imm0 ...imm1
//
//   aaa = Opcode
//    bb = Encoded size of imm0
//    cc = Encoded size of imm1
//
//   +----------------+
//   | Size encoding  |
//   +-----+----------+
//   |  00 | absent   |
//   |  01 | 8 bits   |
//   |  10 | 16 bits  |
//   |  11 | 32 bits  |
//   +-----+----------+
//
// TWO BYTE INSTRUCTION PLUS ZERO TO THREE IMMEDIATES:
//
//   [ 1aaa | aaab ] [ bbcc | cddd ] ...imm0 ...imm1 ...imm2
//
//   aaaaaa = Opcode
//      bbb = Encoded size of imm0
//      ccc = Encoded size of imm1
//      ddd = Encoded size of imm2
//
//   +----------------+
//   | Size encoding  |
//   +-----+----------+
//   | 000 | absent   |
//   | 001 | 8 bits   |
//   | 010 | 16 bits  |
//   | 011 | 32 bits  |
//   | 100 | 64 bits  |
//   | 101 | reserved |
//   | 110 | reserved |
//   | 111 | reserved |
//   +-----+----------+
//
// In the above information, the following statements hold:
//
// • Leftmost bits are most significant.
//
// • Immediates are stored in little endian byte order.
//
// • Signed immediates are stored in 2's complement form.
//
// The one-byte encoding is preferred if possible. However, the two-byte
// encoding is required if any of the following are true:
//
// • The opcode is outside the range [0..7]
//
// • All three immediates are being provided to the instruction
//
// • Any of the immediates cannot be represented in 32 bits
//
//
// The opcodes are organized in the following fashion:
//
//   +------+------------+---------+---------+----------+
//   |      | 00         | 01      | 10      | 11       |
//   +------+------------+---------+---------+----------+
//   | 0000 | NOP        | ALT     | COMMIT  | FAIL     |
//   | 0001 | ANY        | BYTE    | STR     | SET      |
//   | 0010 | JMP        | CALL    | RET     | FIRST    |
//   | 0011 | PCOMMIT    | BCOMMIT | FAIL2X  | POS      |
//   +------+------------+---------+---------+----------+
//   | 0100 | NBYTE      | NSTR    | NSET    | NANY     |
//   | 0101 | OBYTE      | OSTR    | OSET    | RBYTE    |
//   | 0110 | RSTR       | RSET    | EXIT    | LOOKUP   |
//   | 0111 | MEMO       | MEMOFAIL| NEW     | LFOLD    |
//   +------+------------+---------+---------+----------+
//   | 1000 | CAPTURE    | TAG     | REPLACE | LINKPUSH |
//   | 1001 | LINKPOP    | SOPEN   | SMASK   | SCLOSE   |
//   | 1010 | SDEF       | SIS     | SISA    | SEXISTS  |
//   | 1011 | SEXISTSSYM | SMATCH  | EXT     | -        |
//   +------+------------+---------+---------+----------+
//
//   (Left: bits 5-4-3-2; top: bits 1-0.)
//
// Every instruction continues at Next unless stated otherwise. Next is the
// following instruction, with JMP chains already followed. In the
// pseudocode below, m is the Machine.
//
// • ALT target
//
//   m.stack.push(choice{pos: m.Pos, log: m.log.Mark(), sym: m.sym.SavePoint(), next: target})
//
// Sets up an alternative parse: if the current parse fails, the position,
// AST log and symbol table are rewound and execution transfers to target.
//
// • COMMIT target
//
//   m.stack.pop(choice)
//   m.PC = target
//
// Commits to the current parse and jumps to target.
//
// • FAIL
//
//   for !m.stack.isEmpty() {
//     frame := m.stack.pop()
//     if frame is choice {
//       m.Pos = frame.pos
//       m.log.Abort(frame.log)
//       m.sym.Rollback(frame.sym)
//       m.PC = frame.next
//       return
//     }
//   }
//   m.PC = 2
//
// Fails the match. Every primitive below "fails" in exactly this way.
//
// • ANY, BYTE b, STR lit, SET set
//
// Match one byte, the byte b, the literal bytestring lit, or one byte of
// set, advancing past it. Fail otherwise.
//
// • NANY, NBYTE b, NSTR lit, NSET set
//
// Fail iff the corresponding match would succeed. Never advance.
//
// • OBYTE b, OSTR lit, OSET set
//
// Advance past one match if there is one. Never fail.
//
// • RBYTE b, RSTR lit, RSET set
//
// Advance past as many consecutive matches as there are. Never fail.
//
// • JMP target
//
// Jumps to target. The linker threads every Next, branch target and table
// entry through JMP chains, so a linked program never executes a JMP.
//
// • CALL target, RET
//
//   CALL: m.stack.push(call{next: Next}); m.PC = target
//   RET:  frame := m.stack.pop(call); m.PC = frame.next
//
// • FIRST table
//
//   if m.Pos == len(m.Input) { fail() }
//   target := m.P.Tables[table][m.Input[m.Pos]]
//   if target < 0 { fail() }
//   m.PC = target
//
// Dispatches on the next input byte. Used for predicted choices.
//
// • PCOMMIT target
//
//   frame := m.stack.top(choice)
//   if frame.pos == m.Pos { fail(); return }
//   frame.pos, frame.log, frame.sym = m.Pos, m.log.Mark(), m.sym.SavePoint()
//   m.PC = target
//
// Updates the alternative parse set up by the last ALT to the current
// state. Used to implement greedy loops; an iteration that consumed nothing
// ends the loop as if it had failed.
//
// • BCOMMIT target
//
//   frame := m.stack.pop(choice)
//   m.Pos, m.log, m.sym = rewound to frame
//   m.PC = target
//
// Backtracks like a FAIL, but jumps to target. Used to implement positive
// lookahead.
//
// • FAIL2X
//
//   m.stack.pop(choice)
//   fail()
//
// Fails the match twice. Used to implement negative lookahead.
//
// • POS
//
//   m.stack.push(pos{pos: m.Pos})
//
// Records the start of a span for SDEF, SIS or SISA.
//
// • EXIT ok
//
// Halts. If ok is non-zero the match succeeds and the AST log is committed
// into Result.Tree.
//
// • LOOKUP memo, stateful, target
//
//   entry, found := m.memo.Lookup({memo, m.Pos, state})
//   if !found { continue }
//   if entry.Failed { fail() }
//   m.log.Replay(entry.Log); m.sym.Replay(entry.Symbols)
//   m.Pos += entry.Consumed
//   m.PC = target
//
// state is the symbol table state when stateful is non-zero, otherwise 0.
//
// • MEMO memo, stateful
//
//   frame := m.stack.pop(choice)
//   m.memo.Insert({memo, frame.pos, state}, {Consumed: m.Pos - frame.pos, ...})
//
// Records a successful call, including the log entries and symbols it
// produced.
//
// • MEMOFAIL memo, stateful
//
//   m.memo.Insert({memo, m.Pos, state}, {Failed: true})
//   fail()
//
// • NEW [shift], LFOLD label[, shift], CAPTURE [shift], TAG name, REPLACE value
//
// Append the matching entry to the AST log. Positions are m.Pos + shift.
//
// • LINKPUSH, LINKPOP label[, index]
//
//   LINKPUSH: m.stack.push(link{log: m.log.Mark()})
//   LINKPOP:  frame := m.stack.pop(link)
//             m.log.Link(label, index, m.log.Commit(frame.log))
//
// Builds the node described by the entries recorded since LINKPUSH and
// attaches it to the enclosing node. index defaults to -1 (append).
//
// • SOPEN, SMASK table, SCLOSE
//
//   SOPEN:  m.stack.push(scope{sym: m.sym.SavePoint()})
//   SMASK:  SOPEN; m.sym.AddMask(table)
//   SCLOSE: frame := m.stack.pop(scope); m.sym.Rollback(frame.sym)
//
// • SDEF table, SIS table, SISA table
//
//   frame := m.stack.pop(pos)
//   span := m.Input[frame.pos:m.Pos]
//
// SDEF adds span to table. SIS succeeds iff span equals the latest symbol of
// table; SISA succeeds iff span equals any visible symbol. On mismatch the
// position returns to frame.pos before failing.
//
// • SEXISTS table, SEXISTSSYM table, lit
//
// Fail unless table has a visible symbol (or the visible symbol lit).
//
// • SMATCH table
//
// Matches the latest symbol of table literally. Succeeds without advancing
// if table has no visible symbol.
//
// • EXT ext
//
//   n, ok := m.P.Extensions[ext].Match(m.Input, m.Pos)
//   if !ok { fail() }
//   m.Pos += n
//
package peggyvm
