package agent

import (
	"fmt"
	"strings"
)

// Role prompts are intentionally in Portuguese: the product serves
// Brazilian teams and the models follow pt-BR instructions reliably.

const sqlWriterPrompt = `Você é um especialista em SQL. Sua tarefa é escrever **apenas** a consulta SQL que responda à pergunta do usuário. A consulta deve:

- Usar a sintaxe SQL padrão em inglês.
- Utilizar os nomes das tabelas e colunas conforme definidos no esquema do banco de dados.
- Não incluir comentários, explicações ou qualquer texto adicional.
- Não utilizar formatação de código ou markdown.
- Retornar apenas a consulta SQL válida.`

const qaEngineerPrompt = `Você é um engenheiro de QA especializado em SQL. Sua tarefa é verificar se a consulta SQL fornecida responde corretamente à pergunta do usuário.`

const chiefDBAPrompt = `Você é um DBA experiente. Sua tarefa é fornecer feedback detalhado para melhorar a consulta SQL fornecida.`

// acceptToken is the marker the reviewer must emit to approve a statement.
const acceptToken = "ACEITO"

func sqlWriterInstruction(s QueryState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Esquema do banco de dados:\n%s\n", s.TableSchemas)
	if len(s.Reflect) > 0 {
		fmt.Fprintf(&b, "Considere os seguintes feedbacks:\n%s\n", strings.Join(s.Reflect, "\n"))
	}
	fmt.Fprintf(&b, "Escreva a consulta SQL que responda à seguinte pergunta: %s\n", s.Question)
	return b.String()
}

func qaEngineerInstruction(s QueryState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Com base no seguinte esquema de banco de dados:\n%s\n", s.TableSchemas)
	fmt.Fprintf(&b, "E na seguinte consulta SQL:\n%s\n", s.SQL)
	fmt.Fprintf(&b, "Verifique se a consulta SQL pode completar a tarefa: %s\n", s.Question)
	b.WriteString("Responda 'ACEITO' se estiver correta ou 'REJEITADO' se não estiver.\n")
	return b.String()
}

func chiefDBAInstruction(s QueryState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Com base no seguinte esquema de banco de dados:\n%s\n", s.TableSchemas)
	fmt.Fprintf(&b, "E na seguinte consulta SQL:\n%s\n", s.SQL)
	fmt.Fprintf(&b, "Por favor, forneça recomendações úteis e detalhadas para ajudar a melhorar a consulta SQL para a tarefa: %s\n", s.Question)
	return b.String()
}

// stripSQLFences removes markdown code fences some models emit despite
// being told not to.
func stripSQLFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// drop the language tag line, e.g. "sql"
		if lang := strings.TrimSpace(s[:i]); lang == "" || !strings.ContainsAny(lang, " \t") {
			s = s[i+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
