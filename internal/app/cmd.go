package app

import (
	"errors"
	"fmt"
	"strings"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はWebサーバーとして起動する。引数なしの既定値。
	CommandServe Command = "serve"
	// CommandWorker は期限切れセッションの削除だけを行う。
	CommandWorker Command = "worker"
	// CommandMigrate はsessionsテーブルのマイグレーションを実行する。
	// 続く引数で up / down / version を選べる。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はdistroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandHelp は使い方を表示する。
	CommandHelp Command = "help"
)

// ErrUnknownCommand は未知のサブコマンドが指定されたことを示す。
var ErrUnknownCommand = errors.New("unknown command")

const usage = `usage: perfreview [command] [args]

commands:
  serve               Webサーバーを起動する（既定）
  worker              期限切れセッションを定期削除する
  migrate [up|down]   sessionsテーブルのマイグレーションを実行する
  migrate version     適用済みのマイグレーションバージョンを表示する
  healthcheck         /health を呼び出して終了コードで結果を返す
  help                この使い方を表示する`

// ParseCommand はコマンドライン引数からサブコマンドと残りの引数を取り出す。
// 引数が空の場合はCommandServeを返す。
func ParseCommand(args []string) (Command, []string, error) {
	if len(args) == 0 {
		return CommandServe, nil, nil
	}

	switch cmd := Command(strings.ToLower(args[0])); cmd {
	case CommandServe, CommandWorker, CommandMigrate, CommandHealthcheck:
		return cmd, args[1:], nil
	case CommandHelp, "-h", "--help":
		return CommandHelp, nil, nil
	default:
		return "", nil, fmt.Errorf("%w: %q\n%s", ErrUnknownCommand, args[0], usage)
	}
}
