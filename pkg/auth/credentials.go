// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials 用户名或密码错误
var ErrInvalidCredentials = errors.New("invalid username or password")

// UserTable 用户名 -> bcrypt 哈希（来自 api.users 配置）
type UserTable map[string]string

// NewUserTable 用户名统一小写（viper 读取的 map key 已小写）
func NewUserTable(users map[string]string) UserTable {
	t := make(UserTable, len(users))
	for name, hash := range users {
		t[strings.ToLower(name)] = hash
	}
	return t
}

// Verify 校验用户名与密码；未知用户同样返回 ErrInvalidCredentials
func (t UserTable) Verify(username, password string) error {
	hash, ok := t[strings.ToLower(username)]
	if !ok || username == "" {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword 生成 bcrypt 哈希，供 cli 生成 api.users 配置
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
