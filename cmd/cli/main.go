package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"docunexus/pkg/auth"
	"docunexus/pkg/config"
)

const version = "docunexus cli 0.1.0"

func main() {
	format, args := extractOutput(os.Args[1:])
	if len(args) < 1 {
		printUsage()
		os.Exit(0)
	}
	if err := run(newClientFromEnv(), format, args[0], args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: docunexus [-o json|yaml|text] <command> [args]")
	fmt.Println("  version                      - 显示版本")
	fmt.Println("  config                       - 显示配置概要")
	fmt.Println("  health                       - 健康检查")
	fmt.Println("  login <user> <password>      - 登录，输出 token（设置到 DOCUNEXUS_TOKEN）")
	fmt.Println("  hash-password <password>     - 生成 api.users 使用的 bcrypt 哈希")
	fmt.Println("  ask [--secondary] <prompt>   - 文本问答，默认以最近上传的文档为上下文")
	fmt.Println("  vision <image> <prompt>      - 图片问答")
	fmt.Println("  upload <file>                - 上传文档（pdf/png/jpg/txt/md）")
	fmt.Println("  docs                         - 列出已上传文档")
	fmt.Println("  summarize <id>               - 文档摘要")
	fmt.Println("  entities <id>                - 实体提取")
	fmt.Println("  search <id> <query>          - 文档内语义搜索")
	fmt.Println("  compare <id> <id> [...]      - 文档对比")
	fmt.Println("  history [clear]              - 查看或清空会话历史")
	fmt.Println("  query <sql>                  - 数据仓库查询")
	fmt.Println("  job submit <kind> <file>     - 提交媒体任务（batch|transcode|tags）")
	fmt.Println("  job get <id>                 - 查询媒体任务")
	fmt.Println("  job summary <id> [prompt]    - 总结已完成的媒体任务")
}

// extractOutput 取出任意位置的 -o/--output 参数
func extractOutput(args []string) (string, []string) {
	format := ""
	rest := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case (a == "-o" || a == "--output") && i+1 < len(args):
			format = args[i+1]
			i++
		case strings.HasPrefix(a, "-o="):
			format = strings.TrimPrefix(a, "-o=")
		case strings.HasPrefix(a, "--output="):
			format = strings.TrimPrefix(a, "--output=")
		default:
			rest = append(rest, a)
		}
	}
	return format, rest
}

func usageError(usage string) error {
	return fmt.Errorf("usage: docunexus %s", usage)
}

func run(c *client, format, cmd string, args []string, out io.Writer) error {
	var (
		result interface{}
		err    error
	)
	switch cmd {
	case "version":
		result = version
	case "config":
		cfg, lerr := config.LoadAPIConfigWithModel()
		if lerr != nil {
			return fmt.Errorf("加载配置失败: %w", lerr)
		}
		result = map[string]interface{}{
			"api.host":         cfg.API.Host,
			"api.port":         cfg.API.Port,
			"api.auth":         cfg.API.Middleware.Auth,
			"model.llm":        cfg.Model.Defaults.LLM,
			"model.secondary":  cfg.Model.Defaults.Secondary,
			"storage.history":  cfg.Storage.History.Type,
			"storage.document": cfg.Storage.Document.Type,
			"jobqueue.type":    cfg.JobQueue.Type,
		}
	case "health":
		result, err = c.health()
	case "login":
		if len(args) < 2 {
			return usageError("login <user> <password>")
		}
		result, err = c.login(args[0], args[1])
	case "hash-password":
		if len(args) < 1 {
			return usageError("hash-password <password>")
		}
		result, err = auth.HashPassword(args[0])
	case "ask":
		secondary := false
		if len(args) > 0 && args[0] == "--secondary" {
			secondary = true
			args = args[1:]
		}
		if len(args) < 1 {
			return usageError("ask [--secondary] <prompt>")
		}
		result, err = c.ask(strings.Join(args, " "), secondary, nil)
	case "vision":
		if len(args) < 2 {
			return usageError("vision <image> <prompt>")
		}
		result, err = c.vision(args[0], strings.Join(args[1:], " "))
	case "upload":
		if len(args) < 1 {
			return usageError("upload <file>")
		}
		result, err = c.upload(args[0])
	case "docs":
		result, err = c.documents()
	case "summarize", "entities", "metadata":
		if len(args) < 1 {
			return usageError(cmd + " <id>")
		}
		action := map[string]string{"summarize": "summary", "entities": "entities", "metadata": "metadata"}[cmd]
		result, err = c.documentAction(args[0], action, nil)
	case "search":
		if len(args) < 2 {
			return usageError("search <id> <query>")
		}
		result, err = c.documentAction(args[0], "search", map[string]string{"query": strings.Join(args[1:], " ")})
	case "compare":
		if len(args) < 2 {
			return usageError("compare <id> <id> [...]")
		}
		result, err = c.compare("", args)
	case "history":
		if len(args) > 0 && args[0] == "clear" {
			result, err = c.clearHistory()
		} else {
			result, err = c.history()
		}
	case "query":
		if len(args) < 1 {
			return usageError("query <sql>")
		}
		result, err = c.query(strings.Join(args, " "))
	case "job":
		result, err = runJob(c, args)
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		return err
	}
	text, err := render(format, result)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, strings.TrimRight(text, "\n"))
	return err
}

func runJob(c *client, args []string) (interface{}, error) {
	if len(args) >= 3 && args[0] == "submit" {
		payload, err := os.ReadFile(args[2])
		if err != nil {
			return nil, fmt.Errorf("读取任务描述失败: %w", err)
		}
		if !json.Valid(payload) {
			return nil, fmt.Errorf("%s is not valid JSON", args[2])
		}
		return c.submitJob(args[1], payload)
	}
	if len(args) >= 2 && args[0] == "get" {
		return c.getJob(args[1])
	}
	if len(args) >= 2 && args[0] == "summary" {
		return c.summarizeJob(args[1], strings.Join(args[2:], " "))
	}
	return nil, usageError("job submit <kind> <file> | job get <id> | job summary <id> [prompt]")
}

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}
