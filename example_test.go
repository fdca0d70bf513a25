/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package webdb_test

import (
	"context"
	"fmt"
	"os"

	"github.com/tomoncle/webdb"
)

func Example() {
	dir, _ := os.MkdirTemp("", "webdb-example")
	defer os.RemoveAll(dir)

	db, err := webdb.New(webdb.Config{
		Name:        "todo",
		MinCapacity: -1,
		Stores:      []webdb.StoreConfig{{Topic: "todos"}},
		Connection:  webdb.ConnectionConfig{Type: "bolt", Dir: dir},
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	defer db.Close()

	ctx := context.Background()
	key, _ := db.Create(ctx, "todos", webdb.Record{"task": "play", "completed": false})
	_, _ = db.Update(ctx, "todos", webdb.Record{"id": key, "task": "play", "completed": true})

	record, _ := db.ReadOne(ctx, "todos", key)
	fmt.Println(key, record["task"], record["completed"])

	_ = db.Delete(ctx, "todos", key)
	records, _ := db.Read(ctx, "todos")
	fmt.Println(len(records))
	// Output:
	// 1 play true
	// 0
}

func ExampleAsync() {
	res := <-webdb.Async(context.Background(), func(ctx context.Context) (string, error) {
		return "settled", nil
	})
	fmt.Println(res.Data, res.Error)
	// Output: settled <nil>
}
